// Package memory provides in-process repository implementations with the
// same semantics as the MongoDB and MySQL ones. Tests use them in place of
// real databases.
package memory

import (
	"context"
	"sort"
	"strings"
	"sync"
	"time"

	"go.mongodb.org/mongo-driver/bson/primitive"

	apperrors "maskan/internal/errors"
	"maskan/internal/model"
	"maskan/internal/repository"
)

// Users is an in-memory repository.UserRepository.
type Users struct {
	mu    sync.Mutex
	users map[primitive.ObjectID]model.User

	// FailAddListing, when set, is returned by AddListing.
	FailAddListing error
}

var _ repository.UserRepository = (*Users)(nil)

// NewUsers creates an empty user store.
func NewUsers() *Users {
	return &Users{users: make(map[primitive.ObjectID]model.User)}
}

func (r *Users) Create(_ context.Context, user *model.User) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	for _, u := range r.users {
		if strings.EqualFold(u.Email, user.Email) {
			return apperrors.ErrDuplicateEmail
		}
	}
	if user.ID.IsZero() {
		user.ID = primitive.NewObjectID()
	}
	if user.Listings == nil {
		user.Listings = []primitive.ObjectID{}
	}
	now := time.Now().UTC()
	user.CreatedAt, user.UpdatedAt = now, now
	r.users[user.ID] = copyUser(*user)
	return nil
}

func (r *Users) FindByID(_ context.Context, id primitive.ObjectID) (*model.User, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	u, ok := r.users[id]
	if !ok {
		return nil, apperrors.ErrUserNotFound
	}
	u = copyUser(u)
	u.PasswordHash = ""
	return &u, nil
}

func (r *Users) FindByEmail(_ context.Context, email string) (*model.User, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	for _, u := range r.users {
		if u.Email == email {
			u = copyUser(u)
			return &u, nil
		}
	}
	return nil, apperrors.ErrUserNotFound
}

func (r *Users) UpdateProfile(_ context.Context, id primitive.ObjectID, update model.ProfileUpdate) (*model.User, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	u, ok := r.users[id]
	if !ok {
		return nil, apperrors.ErrUserNotFound
	}
	if update.Email != nil {
		for otherID, other := range r.users {
			if otherID != id && other.Email == *update.Email {
				return nil, apperrors.ErrDuplicateEmail
			}
		}
		u.Email = *update.Email
	}
	if update.Name != nil {
		u.Name = *update.Name
	}
	if update.PasswordHash != nil {
		u.PasswordHash = *update.PasswordHash
	}
	if update.TokensValidAfter != nil {
		t := *update.TokensValidAfter
		u.TokensValidAfter = &t
	}
	u.UpdatedAt = time.Now().UTC()
	r.users[id] = u

	out := copyUser(u)
	out.PasswordHash = ""
	return &out, nil
}

func (r *Users) SetSession(_ context.Context, id primitive.ObjectID, tokenHash string, expires time.Time) error {
	return r.mutate(id, func(u *model.User) {
		u.AuthTokenHash = tokenHash
		u.AuthTokenExpires = &expires
	})
}

func (r *Users) ClearSession(_ context.Context, id primitive.ObjectID) error {
	return r.mutate(id, func(u *model.User) {
		u.AuthTokenHash = ""
		u.AuthTokenExpires = nil
	})
}

func (r *Users) SetVerificationToken(_ context.Context, id primitive.ObjectID, tokenHash string, expires time.Time) error {
	return r.mutate(id, func(u *model.User) {
		u.VerificationTokenHash = tokenHash
		u.VerificationTokenExpires = &expires
	})
}

func (r *Users) ConsumeVerificationToken(_ context.Context, tokenHash string, now time.Time) (*model.User, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	for id, u := range r.users {
		if u.VerificationTokenHash == "" || u.VerificationTokenHash != tokenHash {
			continue
		}
		if u.VerificationTokenExpires == nil || !u.VerificationTokenExpires.After(now) {
			continue
		}
		u.IsVerified = true
		u.VerificationTokenHash = ""
		u.VerificationTokenExpires = nil
		r.users[id] = u
		out := copyUser(u)
		out.PasswordHash = ""
		return &out, nil
	}
	return nil, apperrors.ErrInvalidOrExpiredToken
}

func (r *Users) SetResetToken(_ context.Context, id primitive.ObjectID, tokenHash string, expires time.Time) error {
	return r.mutate(id, func(u *model.User) {
		u.ResetTokenHash = tokenHash
		u.ResetTokenExpires = &expires
	})
}

func (r *Users) ConsumeResetToken(_ context.Context, tokenHash string, now time.Time, passwordHash string) (*model.User, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	for id, u := range r.users {
		if u.ResetTokenHash == "" || u.ResetTokenHash != tokenHash {
			continue
		}
		if u.ResetTokenExpires == nil || !u.ResetTokenExpires.After(now) {
			continue
		}
		validAfter := now.Truncate(time.Second)
		u.PasswordHash = passwordHash
		u.TokensValidAfter = &validAfter
		u.ResetTokenHash = ""
		u.ResetTokenExpires = nil
		u.AuthTokenHash = ""
		u.AuthTokenExpires = nil
		r.users[id] = u
		out := copyUser(u)
		out.PasswordHash = ""
		return &out, nil
	}
	return nil, apperrors.ErrInvalidOrExpiredToken
}

func (r *Users) AddListing(_ context.Context, userID, listingID primitive.ObjectID) error {
	if r.FailAddListing != nil {
		return r.FailAddListing
	}
	return r.mutate(userID, func(u *model.User) {
		for _, id := range u.Listings {
			if id == listingID {
				return
			}
		}
		u.Listings = append(u.Listings, listingID)
	})
}

func (r *Users) RemoveListing(_ context.Context, userID, listingID primitive.ObjectID) error {
	return r.mutate(userID, func(u *model.User) {
		kept := u.Listings[:0]
		for _, id := range u.Listings {
			if id != listingID {
				kept = append(kept, id)
			}
		}
		u.Listings = kept
	})
}

func (r *Users) SetListings(_ context.Context, userID primitive.ObjectID, listingIDs []primitive.ObjectID) error {
	return r.mutate(userID, func(u *model.User) {
		u.Listings = append([]primitive.ObjectID{}, listingIDs...)
	})
}

// Get returns a stored user including secrets, for assertions.
func (r *Users) Get(id primitive.ObjectID) (model.User, bool) {
	r.mu.Lock()
	defer r.mu.Unlock()
	u, ok := r.users[id]
	return copyUser(u), ok
}

func (r *Users) mutate(id primitive.ObjectID, fn func(u *model.User)) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	u, ok := r.users[id]
	if !ok {
		return apperrors.ErrUserNotFound
	}
	fn(&u)
	u.UpdatedAt = time.Now().UTC()
	r.users[id] = u
	return nil
}

func copyUser(u model.User) model.User {
	u.Listings = append([]primitive.ObjectID{}, u.Listings...)
	return u
}

// Listings is an in-memory repository.ListingRepository.
type Listings struct {
	mu       sync.Mutex
	listings map[primitive.ObjectID]model.Listing

	// FindCalls counts Find invocations, for cache assertions.
	FindCalls int
}

var _ repository.ListingRepository = (*Listings)(nil)

// NewListings creates an empty listing store.
func NewListings() *Listings {
	return &Listings{listings: make(map[primitive.ObjectID]model.Listing)}
}

func (r *Listings) Create(_ context.Context, listing *model.Listing) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	if listing.ID.IsZero() {
		listing.ID = primitive.NewObjectID()
	}
	now := time.Now().UTC()
	listing.CreatedAt, listing.UpdatedAt = now, now
	r.listings[listing.ID] = copyListing(*listing)
	return nil
}

func (r *Listings) FindByID(_ context.Context, id primitive.ObjectID) (*model.Listing, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	l, ok := r.listings[id]
	if !ok {
		return nil, apperrors.ErrListingNotFound
	}
	l = copyListing(l)
	return &l, nil
}

func (r *Listings) Find(_ context.Context, filter model.ListingFilter) ([]model.Listing, error) {
	r.mu.Lock()
	r.FindCalls++
	r.mu.Unlock()

	return r.collect(func(l model.Listing) bool {
		return (filter.City == "" || l.City == filter.City) &&
			(filter.Location == "" || l.Location == filter.Location) &&
			(filter.Purpose == "" || l.Purpose == filter.Purpose) &&
			(filter.Status == "" || l.Status == filter.Status)
	}), nil
}

func (r *Listings) FindByOwner(_ context.Context, ownerID primitive.ObjectID) ([]model.Listing, error) {
	return r.collect(func(l model.Listing) bool { return l.Owner == ownerID }), nil
}

func (r *Listings) Update(_ context.Context, listing *model.Listing) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	existing, ok := r.listings[listing.ID]
	if !ok || existing.Owner != listing.Owner {
		return apperrors.ErrListingNotFound
	}
	updated := copyListing(*listing)
	updated.CreatedAt = existing.CreatedAt
	updated.UpdatedAt = time.Now().UTC()
	r.listings[listing.ID] = updated
	return nil
}

func (r *Listings) Delete(_ context.Context, id, ownerID primitive.ObjectID) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	existing, ok := r.listings[id]
	if !ok || existing.Owner != ownerID {
		return apperrors.ErrListingNotFound
	}
	delete(r.listings, id)
	return nil
}

// Count returns the number of stored listings.
func (r *Listings) Count() int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return len(r.listings)
}

func (r *Listings) collect(match func(model.Listing) bool) []model.Listing {
	r.mu.Lock()
	defer r.mu.Unlock()

	out := make([]model.Listing, 0)
	for _, l := range r.listings {
		if match(l) {
			out = append(out, copyListing(l))
		}
	}
	sort.Slice(out, func(i, j int) bool {
		if out[i].CreatedAt.Equal(out[j].CreatedAt) {
			return out[i].ID.Hex() > out[j].ID.Hex()
		}
		return out[i].CreatedAt.After(out[j].CreatedAt)
	})
	return out
}

func copyListing(l model.Listing) model.Listing {
	l.Images = append([]string(nil), l.Images...)
	l.Amenities = append([]string(nil), l.Amenities...)
	return l
}

// Agents is an in-memory repository.AgentRepository.
type Agents struct {
	mu     sync.Mutex
	agents []model.Agent
}

var _ repository.AgentRepository = (*Agents)(nil)

// NewAgents creates an empty agent store.
func NewAgents() *Agents { return &Agents{} }

func (r *Agents) Create(_ context.Context, agent *model.Agent) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if agent.ID.IsZero() {
		agent.ID = primitive.NewObjectID()
	}
	now := time.Now().UTC()
	agent.CreatedAt, agent.UpdatedAt = now, now
	r.agents = append(r.agents, *agent)
	return nil
}

func (r *Agents) FindByEmail(_ context.Context, email string) (*model.Agent, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	for i := len(r.agents) - 1; i >= 0; i-- {
		if r.agents[i].AgentEmail == email {
			a := r.agents[i]
			return &a, nil
		}
	}
	return nil, apperrors.ErrAgentNotFound
}

// Brokers is an in-memory repository.BrokerRepository.
type Brokers struct {
	mu      sync.Mutex
	brokers []model.Broker
}

var _ repository.BrokerRepository = (*Brokers)(nil)

// NewBrokers creates an empty broker store.
func NewBrokers() *Brokers { return &Brokers{} }

func (r *Brokers) Create(_ context.Context, broker *model.Broker) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if broker.ID.IsZero() {
		broker.ID = primitive.NewObjectID()
	}
	now := time.Now().UTC()
	broker.CreatedAt, broker.UpdatedAt = now, now
	r.brokers = append(r.brokers, *broker)
	return nil
}

// Len returns the number of stored brokers.
func (r *Brokers) Len() int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return len(r.brokers)
}

// NotificationLogs is an in-memory repository.NotificationLogRepository.
type NotificationLogs struct {
	mu   sync.Mutex
	logs []model.NotificationLog
}

var _ repository.NotificationLogRepository = (*NotificationLogs)(nil)

// NewNotificationLogs creates an empty log store.
func NewNotificationLogs() *NotificationLogs { return &NotificationLogs{} }

func (r *NotificationLogs) Create(_ context.Context, log *model.NotificationLog) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.logs = append(r.logs, *log)
	return nil
}

func (r *NotificationLogs) CreateBatch(_ context.Context, logs []model.NotificationLog) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.logs = append(r.logs, logs...)
	return nil
}

func (r *NotificationLogs) ListByUser(_ context.Context, userID string, limit int) ([]model.NotificationLog, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	out := make([]model.NotificationLog, 0)
	for i := len(r.logs) - 1; i >= 0 && len(out) < limit; i-- {
		if r.logs[i].UserID == userID {
			out = append(out, r.logs[i])
		}
	}
	return out, nil
}

// All returns every stored entry.
func (r *NotificationLogs) All() []model.NotificationLog {
	r.mu.Lock()
	defer r.mu.Unlock()
	return append([]model.NotificationLog(nil), r.logs...)
}
