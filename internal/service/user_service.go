package service

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"
	"unicode/utf8"

	"go.uber.org/zap"

	"github.com/iliyamo/iot-auth-service/internal/model"
	"github.com/iliyamo/iot-auth-service/internal/queue"
	"github.com/iliyamo/iot-auth-service/internal/repository"
	"github.com/iliyamo/iot-auth-service/internal/utils"
)

var errDetailsNotFound = newError(KindNotFound, "User details not found")

// UserService manages the account of an authenticated user and the admin
// ban switch.
type UserService struct {
	users      UserStore
	details    DetailsStore
	tokens     *TokenService
	events     events
	bcryptCost int
	now        func() time.Time
}

func NewUserService(users UserStore, details DetailsStore, tokens *TokenService, pub queue.Publisher, bcryptCost int, log *zap.Logger) *UserService {
	return &UserService{
		users:      users,
		details:    details,
		tokens:     tokens,
		events:     events{pub: pub, log: log},
		bcryptCost: bcryptCost,
		now:        time.Now,
	}
}

func (s *UserService) Get(ctx context.Context, id string) (*model.User, error) {
	u, err := s.users.GetActiveByID(ctx, id)
	if errors.Is(err, repository.ErrNotFound) {
		return nil, errUserNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("get user: %w", err)
	}
	return u, nil
}

// ListByTenant returns the live users of one tenant.
func (s *UserService) ListByTenant(ctx context.Context, tenantID string) ([]model.User, error) {
	list, err := s.users.ListActiveByTenant(ctx, tenantID)
	if err != nil {
		return nil, fmt.Errorf("list users: %w", err)
	}
	return list, nil
}

type UserPatch struct {
	Username *string
	Email    *string
	Password *string
}

// Update applies a partial account update. A password change ends every
// other session of the user.
func (s *UserService) Update(ctx context.Context, id string, p UserPatch) (*model.User, error) {
	if p.Username == nil && p.Email == nil && p.Password == nil {
		return nil, newError(KindBadRequest, "No fields to update")
	}
	u, err := s.Get(ctx, id)
	if err != nil {
		return nil, err
	}

	var details []utils.FieldError
	if p.Username != nil {
		u.Username = strings.TrimSpace(*p.Username)
		if !utils.IsValidAccountUsername(u.Username) {
			details = append(details, utils.FieldError{Field: "username", Message: "must be 3-50 letters, digits, '.', '_' or '-'"})
		}
	}
	if p.Email != nil {
		u.Email = strings.ToLower(strings.TrimSpace(*p.Email))
		if !utils.IsValidEmail(u.Email) {
			details = append(details, utils.FieldError{Field: "email", Message: "Invalid email format"})
		}
	}
	var newPassword string
	if p.Password != nil {
		newPassword = strings.TrimSpace(*p.Password)
		if problem := utils.PasswordProblem(newPassword); problem != "" {
			details = append(details, utils.FieldError{Field: "password", Message: problem})
		}
	}
	if len(details) > 0 {
		return nil, newError(KindValidation, "Validation error", details...)
	}

	if newPassword != "" {
		if u.PasswordHash, err = utils.HashPassword(newPassword, s.bcryptCost); err != nil {
			return nil, err
		}
	}
	if err := s.users.Update(ctx, u); err != nil {
		return nil, userConflict(err)
	}
	if newPassword != "" {
		if err := s.tokens.RevokeAll(ctx, u.ID); err != nil {
			return nil, err
		}
	}
	return u, nil
}

// Delete soft-deletes the user together with its details and sessions.
func (s *UserService) Delete(ctx context.Context, id string) error {
	u, err := s.Get(ctx, id)
	if err != nil {
		return err
	}
	if err := s.users.SoftDelete(ctx, id); err != nil {
		if errors.Is(err, repository.ErrNotFound) {
			return errUserNotFound
		}
		return fmt.Errorf("delete user: %w", err)
	}
	s.events.emit(ctx, queue.AuthEvent{Type: queue.UserDeleted, TenantID: u.TenantID, UserID: u.ID, ActorID: u.ID})
	return nil
}

func (s *UserService) GetDetails(ctx context.Context, userID string) (*model.UserDetails, error) {
	d, err := s.details.GetActiveByUserID(ctx, userID)
	if errors.Is(err, repository.ErrNotFound) {
		return nil, errDetailsNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("get user details: %w", err)
	}
	return d, nil
}

// DetailsPatch is a partial profile update. A nil field is left alone; a
// blank string clears it.
type DetailsPatch struct {
	FullName       *string
	PhoneNumber    *string
	Address        *string
	DateOfBirth    *string
	ProfilePicture *string
}

var detailLimits = map[string]int{
	"full_name":       255,
	"phone_number":    32,
	"address":         1000,
	"profile_picture": 512,
}

func (s *UserService) UpdateDetails(ctx context.Context, userID string, p DetailsPatch) (*model.UserDetails, error) {
	if _, err := s.Get(ctx, userID); err != nil {
		return nil, err
	}

	d, err := s.details.GetActiveByUserID(ctx, userID)
	if errors.Is(err, repository.ErrNotFound) {
		d, err = &model.UserDetails{UserID: userID}, nil
	}
	if err != nil {
		return nil, fmt.Errorf("load user details: %w", err)
	}

	if p.DateOfBirth != nil {
		dob := trimmedOrNil(p.DateOfBirth)
		if dob != nil {
			if _, problem := utils.ParseBirthDate(*dob, s.now()); problem != "" {
				return nil, newError(KindBadRequest, "Bad Request",
					utils.FieldError{Field: "date_of_birth", Message: problem})
			}
		}
		d.DateOfBirth = dob
	}

	var details []utils.FieldError
	for _, f := range []struct {
		name  string
		in    *string
		field **string
	}{
		{"full_name", p.FullName, &d.FullName},
		{"phone_number", p.PhoneNumber, &d.PhoneNumber},
		{"address", p.Address, &d.Address},
		{"profile_picture", p.ProfilePicture, &d.ProfilePicture},
	} {
		if f.in == nil {
			continue
		}
		v := trimmedOrNil(f.in)
		if v != nil && utf8.RuneCountInString(*v) > detailLimits[f.name] {
			details = append(details, utils.FieldError{Field: f.name, Message: fmt.Sprintf("must be at most %d characters", detailLimits[f.name])})
			continue
		}
		*f.field = v
	}
	if len(details) > 0 {
		return nil, newError(KindValidation, "Validation error", details...)
	}

	if err := s.details.Save(ctx, d); err != nil {
		if errors.Is(err, repository.ErrNotFound) {
			return nil, errUserNotFound
		}
		return nil, fmt.Errorf("save user details: %w", err)
	}
	return d, nil
}

// SetBanned lets an admin ban or unban another user of the same tenant.
// Banning also revokes the target's refresh tokens; its access tokens stop
// working because every request re-checks the account.
func (s *UserService) SetBanned(ctx context.Context, actor *utils.Claims, targetID string, banned bool) (*model.User, error) {
	if actor == nil {
		return nil, errUnauthorized
	}
	if actor.Role != model.RoleAdmin {
		return nil, errForbidden
	}
	if actor.Subject == targetID {
		return nil, newError(KindValidation, "Validation error",
			utils.FieldError{Field: "id", Message: "cannot change your own ban state"})
	}
	u, err := s.Get(ctx, targetID)
	if err != nil {
		return nil, err
	}
	if u.TenantID != actor.TenantID {
		return nil, errUserNotFound
	}

	if err := s.users.SetBanned(ctx, u.ID, banned); err != nil {
		if errors.Is(err, repository.ErrNotFound) {
			return nil, errUserNotFound
		}
		return nil, fmt.Errorf("set banned: %w", err)
	}
	u.IsBanned = banned

	typ := queue.UserUnbanned
	if banned {
		typ = queue.UserBanned
		if err := s.tokens.RevokeAll(ctx, u.ID); err != nil {
			return nil, err
		}
	}
	s.events.emit(ctx, queue.AuthEvent{Type: typ, TenantID: u.TenantID, UserID: u.ID, ActorID: actor.Subject})
	return u, nil
}
