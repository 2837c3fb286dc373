package service

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/iliyamo/iot-auth-service/internal/broker"
	"github.com/iliyamo/iot-auth-service/internal/model"
	"github.com/iliyamo/iot-auth-service/internal/queue"
	"github.com/iliyamo/iot-auth-service/internal/repository"
	"github.com/iliyamo/iot-auth-service/internal/utils"
)

// Decision is the answer given to a broker auth hook. Ignore means no
// opinion, so the next backend in the broker's chain decides.
type Decision int

const (
	Ignore Decision = iota
	Allow
	Deny
)

func (d Decision) String() string {
	switch d {
	case Allow:
		return "allow"
	case Deny:
		return "deny"
	default:
		return "ignore"
	}
}

// MQTT ACL access kinds.
const (
	AccessPublish   = "publish"
	AccessSubscribe = "subscribe"
)

var errMQTTUserNotFound = newError(KindNotFound, "MQTT User not found")

// MQTTService is the broker credential namespace. It shares nothing with
// accounts or tenants.
type MQTTService struct {
	creds      MQTTStore
	notifier   broker.Notifier
	events     events
	bcryptCost int
	log        *zap.Logger
}

func NewMQTTService(creds MQTTStore, notifier broker.Notifier, pub queue.Publisher, bcryptCost int, log *zap.Logger) *MQTTService {
	if notifier == nil {
		notifier = broker.NopNotifier{}
	}
	return &MQTTService{
		creds:      creds,
		notifier:   notifier,
		events:     events{pub: pub, log: log},
		bcryptCost: bcryptCost,
		log:        log,
	}
}

type MQTTCreateInput struct {
	Username    string
	Password    string
	IsSuperuser bool
}

// Create registers a broker credential. A username stays taken after the
// credential is deleted.
func (s *MQTTService) Create(ctx context.Context, in MQTTCreateInput) (*model.MQTTUser, error) {
	var missing []string
	if in.Username == "" {
		missing = append(missing, "username")
	}
	if in.Password == "" {
		missing = append(missing, "password")
	}
	if len(missing) > 0 {
		return nil, newError(KindBadRequest, "Missing required fields", required(missing...)...)
	}

	var details []utils.FieldError
	if !utils.IsValidMQTTUsername(in.Username) {
		details = append(details, utils.FieldError{Field: "username", Message: "must be 3-64 letters, digits, '_' or '-'"})
	}
	if p := utils.PasswordProblem(in.Password); p != "" {
		details = append(details, utils.FieldError{Field: "password", Message: p})
	}
	if len(details) > 0 {
		return nil, newError(KindValidation, "Validation error", details...)
	}

	hash, err := utils.HashPassword(in.Password, s.bcryptCost)
	if err != nil {
		return nil, err
	}
	m := &model.MQTTUser{
		ID:           uuid.NewString(),
		Username:     in.Username,
		PasswordHash: hash,
		IsSuperuser:  in.IsSuperuser,
	}
	if err := s.creds.Create(ctx, m); err != nil {
		if errors.Is(err, repository.ErrUsernameExists) {
			return nil, newError(KindConflict, "Username already exists")
		}
		return nil, fmt.Errorf("create mqtt user: %w", err)
	}

	s.events.emit(ctx, queue.AuthEvent{Type: queue.MQTTUserCreated, Subject: m.Username})
	if err := s.notifier.CredentialCreated(ctx, m.Username, m.IsSuperuser); err != nil {
		s.log.Warn("notify broker of new credential failed", zap.String("username", m.Username), zap.Error(err))
	}
	return m, nil
}

// CheckLogin answers the broker's connect hook: Allow on a matching
// password, Deny on a wrong one and Ignore for an unknown username.
func (s *MQTTService) CheckLogin(ctx context.Context, username, password string) (Decision, error) {
	var missing []string
	if username == "" {
		missing = append(missing, "username")
	}
	if password == "" {
		missing = append(missing, "password")
	}
	if len(missing) > 0 {
		return Ignore, newError(KindValidation, "Validation error", required(missing...)...)
	}

	m, err := s.creds.GetActiveByUsername(ctx, username)
	if errors.Is(err, repository.ErrNotFound) {
		return Ignore, nil
	}
	if err != nil {
		return Ignore, fmt.Errorf("load mqtt user: %w", err)
	}
	if !utils.VerifyPassword(m.PasswordHash, password) {
		return Deny, nil
	}
	return Allow, nil
}

// ACLResult is the outcome of an ACL check. Superuser marks an Allow that
// bypassed topic ownership.
type ACLResult struct {
	Decision  Decision
	Superuser bool
}

// CheckACL answers the broker's publish/subscribe hook. Superusers may use
// any topic; everyone else only topics under users/<username>/.
func (s *MQTTService) CheckACL(ctx context.Context, username, topic, access string) (ACLResult, error) {
	var missing []string
	for _, f := range []struct{ name, value string }{
		{"username", username},
		{"topic", topic},
		{"access", access},
	} {
		if f.value == "" {
			missing = append(missing, f.name)
		}
	}
	if len(missing) > 0 {
		return ACLResult{Decision: Ignore}, newError(KindValidation, "Validation error", required(missing...)...)
	}
	if _, ok := NormalizeAccess(access); !ok {
		return ACLResult{Decision: Ignore}, newError(KindValidation, "Validation error",
			utils.FieldError{Field: "access", Message: "must be publish or subscribe"})
	}

	m, err := s.creds.GetActiveByUsername(ctx, username)
	if errors.Is(err, repository.ErrNotFound) {
		return ACLResult{Decision: Deny}, nil
	}
	if err != nil {
		return ACLResult{Decision: Ignore}, fmt.Errorf("load mqtt user: %w", err)
	}
	if m.IsSuperuser {
		return ACLResult{Decision: Allow, Superuser: true}, nil
	}
	if TopicOwnedBy(topic, m.Username) {
		return ACLResult{Decision: Allow}, nil
	}
	return ACLResult{Decision: Deny}, nil
}

// NormalizeAccess accepts publish and subscribe in any case, plus the
// broker shorthands pub and sub.
func NormalizeAccess(access string) (string, bool) {
	switch strings.ToLower(strings.TrimSpace(access)) {
	case "publish", "pub":
		return AccessPublish, true
	case "subscribe", "sub":
		return AccessSubscribe, true
	}
	return "", false
}

// TopicOwnedBy reports whether topic is rooted at users/<username>/.
func TopicOwnedBy(topic, username string) bool {
	return strings.HasPrefix(topic, "users/"+username+"/")
}

func (s *MQTTService) List(ctx context.Context) ([]model.MQTTUser, error) {
	list, err := s.creds.ListActive(ctx)
	if err != nil {
		return nil, fmt.Errorf("list mqtt users: %w", err)
	}
	return list, nil
}

// Delete soft-deletes a credential. A second delete is not found.
func (s *MQTTService) Delete(ctx context.Context, username string) error {
	err := s.creds.SoftDelete(ctx, username)
	if errors.Is(err, repository.ErrNotFound) {
		return errMQTTUserNotFound
	}
	if err != nil {
		return fmt.Errorf("delete mqtt user: %w", err)
	}

	s.events.emit(ctx, queue.AuthEvent{Type: queue.MQTTUserDeleted, Subject: username})
	if err := s.notifier.CredentialRevoked(ctx, username); err != nil {
		s.log.Warn("notify broker of revoked credential failed", zap.String("username", username), zap.Error(err))
	}
	return nil
}
