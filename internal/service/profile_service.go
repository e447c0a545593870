package service

import (
	"context"
	"strings"

	"go.uber.org/zap"

	"maskan/internal/model"
	"maskan/internal/repository"
	"maskan/internal/validate"
)

// AgentInput is the agent profile form.
type AgentInput struct {
	AgentName       string `json:"agentName" form:"agentName" validate:"required"`
	AgentEmail      string `json:"agentEmail" form:"agentEmail" validate:"required,email"`
	ContactNumber   string `json:"contactNumber" form:"contactNumber" validate:"required"`
	ContactWhatsApp string `json:"contactWhatsApp" form:"contactWhatsApp" validate:"required"`
}

// BrokerInput is the broker registration form.
type BrokerInput struct {
	ReraBrokerID           string `json:"reraBrokerID" form:"reraBrokerID" validate:"required"`
	CompanyLicenseNumber   string `json:"companyLicenseNumber" form:"companyLicenseNumber" validate:"required"`
	CompanyTelephoneNumber string `json:"companyTelephoneNumber" form:"companyTelephoneNumber" validate:"required"`
}

// ProfileService stores agent and broker profiles.
type ProfileService interface {
	CreateAgent(ctx context.Context, in AgentInput, parts []Part) (*model.Agent, error)
	FindAgent(ctx context.Context, email string) (*model.Agent, error)
	CreateBroker(ctx context.Context, in BrokerInput, parts []Part) (*model.Broker, error)
}

type profileService struct {
	agentRepo  repository.AgentRepository
	brokerRepo repository.BrokerRepository
	uploads    UploadService
	validator  *validate.Validator
	logger     *zap.Logger
}

// NewProfileService creates a new profile service.
func NewProfileService(agentRepo repository.AgentRepository, brokerRepo repository.BrokerRepository, uploads UploadService, logger *zap.Logger) ProfileService {
	return &profileService{
		agentRepo:  agentRepo,
		brokerRepo: brokerRepo,
		uploads:    uploads,
		validator:  validate.New(),
		logger:     logger,
	}
}

func (s *profileService) CreateAgent(ctx context.Context, in AgentInput, parts []Part) (*model.Agent, error) {
	in.AgentName = strings.TrimSpace(in.AgentName)
	in.AgentEmail = normalizeEmail(in.AgentEmail)
	if err := s.validator.Struct(in); err != nil {
		return nil, err
	}

	uploaded, err := s.uploads.Upload(ctx, parts, AgentUploadRules(), UploadOptions{Prefix: "agents"})
	if err != nil {
		return nil, err
	}

	agent := &model.Agent{
		AgentName:       in.AgentName,
		AgentEmail:      in.AgentEmail,
		ContactNumber:   strings.TrimSpace(in.ContactNumber),
		ContactWhatsApp: strings.TrimSpace(in.ContactWhatsApp),
		ProfilePhoto:    uploaded.First("profilePhoto"),
	}
	if err := s.agentRepo.Create(ctx, agent); err != nil {
		s.uploads.Discard(ctx, uploaded)
		return nil, err
	}

	s.logger.Info("agent profile created", zap.String("agent_id", agent.ID.Hex()))
	return agent, nil
}

func (s *profileService) FindAgent(ctx context.Context, email string) (*model.Agent, error) {
	return s.agentRepo.FindByEmail(ctx, normalizeEmail(email))
}

func (s *profileService) CreateBroker(ctx context.Context, in BrokerInput, parts []Part) (*model.Broker, error) {
	in.ReraBrokerID = strings.TrimSpace(in.ReraBrokerID)
	in.CompanyLicenseNumber = strings.TrimSpace(in.CompanyLicenseNumber)
	in.CompanyTelephoneNumber = strings.TrimSpace(in.CompanyTelephoneNumber)
	if err := s.validator.Struct(in); err != nil {
		return nil, err
	}

	uploaded, err := s.uploads.Upload(ctx, parts, BrokerUploadRules(), UploadOptions{Prefix: "brokers"})
	if err != nil {
		return nil, err
	}

	broker := &model.Broker{
		ReraBrokerID:           in.ReraBrokerID,
		CompanyLicenseNumber:   in.CompanyLicenseNumber,
		CompanyTelephoneNumber: in.CompanyTelephoneNumber,
		ReraIDCardURL:          uploaded.First("reraIDCard"),
	}
	if err := s.brokerRepo.Create(ctx, broker); err != nil {
		s.uploads.Discard(ctx, uploaded)
		return nil, err
	}

	s.logger.Info("broker profile created", zap.String("broker_id", broker.ID.Hex()))
	return broker, nil
}
