package users

import (
	"context"
	"fmt"
	"time"

	"github.com/harborlight/beacon/pkg/audit"
	"github.com/harborlight/beacon/pkg/auth"
	"github.com/harborlight/beacon/pkg/identity"
	"github.com/harborlight/beacon/pkg/observability"
	"github.com/harborlight/beacon/pkg/profiles"
	"github.com/harborlight/beacon/pkg/scope"
)

// ValidationError reports missing or malformed input. Handlers answer
// it with 400.
type ValidationError struct {
	Message string
}

func (e *ValidationError) Error() string {
	return e.Message
}

// Service coordinates the auth backend, the profile store and the
// audit trail for user management.
type Service struct {
	identities *identity.Client
	store      *profiles.Store
	resolver   *profiles.Resolver
	recorder   audit.Recorder
	logger     *observability.Logger
}

// NewService wires the user management service.
func NewService(identities *identity.Client, store *profiles.Store, resolver *profiles.Resolver,
	recorder audit.Recorder, logger *observability.Logger) *Service {
	return &Service{
		identities: identities,
		store:      store,
		resolver:   resolver,
		recorder:   recorder,
		logger:     logger,
	}
}

// CreateRequest is the input for provisioning a new admin account.
type CreateRequest struct {
	Email    string  `json:"email"`
	FullName string  `json:"full_name"`
	Role     string  `json:"role,omitempty"`
	Region   *string `json:"region,omitempty"`
	Mobile   string  `json:"mobile,omitempty"`
	District string  `json:"district,omitempty"`
	Gender   string  `json:"gender,omitempty"`
	DOB      string  `json:"dob,omitempty"`
}

// CreateResult echoes the provisioned account.
type CreateResult struct {
	ID    string `json:"id"`
	Email string `json:"email"`
}

// Create provisions an identity in the auth backend plus a matching
// profile. The identity is auto-confirmed and passwordless; the backend
// mails a recovery link so the user sets their own password. If the
// profile insert fails the identity is deleted again.
func (s *Service) Create(ctx context.Context, actor *profiles.Profile, req CreateRequest) (*CreateResult, error) {
	if req.Email == "" {
		return nil, &ValidationError{Message: "email is required"}
	}
	if req.FullName == "" {
		return nil, &ValidationError{Message: "full_name is required"}
	}

	role := auth.RoleCoordinator
	if req.Role != "" {
		parsed, ok := auth.ParseRole(req.Role)
		if !ok {
			return nil, &ValidationError{Message: "unrecognized role: " + req.Role}
		}
		role = parsed
	}
	if role.RegionScoped() && (req.Region == nil || *req.Region == "") {
		return nil, &ValidationError{Message: "region is required for role " + string(role)}
	}

	var dob *time.Time
	if req.DOB != "" {
		parsed, err := time.Parse("2006-01-02", req.DOB)
		if err != nil {
			return nil, &ValidationError{Message: "dob must be YYYY-MM-DD"}
		}
		dob = &parsed
	}

	user, err := s.identities.CreateUser(ctx, req.Email)
	if err != nil {
		return nil, err
	}

	profile := &profiles.Profile{
		ID:       user.ID,
		FullName: req.FullName,
		Email:    user.Email,
		Role:     role,
		Region:   req.Region,
		Mobile:   req.Mobile,
		District: req.District,
		Gender:   req.Gender,
		DOB:      dob,
	}
	if err := s.store.Create(ctx, profile); err != nil {
		// Roll the identity back so no credential-bearing account
		// exists without a profile.
		if delErr := s.identities.DeleteUser(ctx, user.ID); delErr != nil {
			s.logger.WithError(delErr).WithField("identity_id", user.ID).
				Error("failed to roll back identity after profile insert failure")
		}
		return nil, fmt.Errorf("failed to create profile: %w", err)
	}

	if err := s.identities.SendRecoveryEmail(ctx, user.Email); err != nil {
		// The account exists and works; the user can request the link
		// again from the sign-in page.
		s.logger.WithError(err).WithField("email", user.Email).
			Warn("failed to send password setup email")
	}

	s.recorder.Record(ctx, &audit.Entry{
		ActorID:    actor.ID,
		ActorEmail: actor.Email,
		Action:     audit.ActionUserCreate,
		Metadata: map[string]interface{}{
			"target_id":    user.ID,
			"target_email": user.Email,
			"role":         string(role),
		},
	})

	return &CreateResult{ID: user.ID, Email: user.Email}, nil
}

// Update changes a user's role and region and records the before and
// after in the audit trail.
func (s *Service) Update(ctx context.Context, actor *profiles.Profile, userID, rawRole string, region *string) (*profiles.Profile, error) {
	if userID == "" {
		return nil, &ValidationError{Message: "user id is required"}
	}
	role, ok := auth.ParseRole(rawRole)
	if !ok {
		return nil, &ValidationError{Message: "unrecognized role: " + rawRole}
	}
	if role.RegionScoped() && (region == nil || *region == "") {
		return nil, &ValidationError{Message: "region is required for role " + string(role)}
	}

	before, err := s.store.Get(ctx, userID)
	if err != nil {
		return nil, err
	}

	after, err := s.store.UpdateRoleRegion(ctx, userID, role, region)
	if err != nil {
		return nil, err
	}
	s.resolver.Invalidate(userID)

	s.recorder.Record(ctx, &audit.Entry{
		ActorID:    actor.ID,
		ActorEmail: actor.Email,
		Action:     audit.ActionUserUpdate,
		Metadata: map[string]interface{}{
			"target_id":     userID,
			"target_email":  after.Email,
			"role_before":   string(before.Role),
			"role_after":    string(after.Role),
			"region_before": before.RegionValue(),
			"region_after":  after.RegionValue(),
		},
	})

	return after, nil
}

// Delete removes the identity from the auth backend and the profile
// with it.
func (s *Service) Delete(ctx context.Context, actor *profiles.Profile, userID string) error {
	if userID == "" {
		return &ValidationError{Message: "user id is required"}
	}

	profile, err := s.store.Get(ctx, userID)
	if err != nil {
		return err
	}

	if err := s.identities.DeleteUser(ctx, userID); err != nil {
		return err
	}

	if err := s.store.Delete(ctx, userID); err != nil && err != profiles.ErrNotFound {
		// The identity is gone; a stale profile row resolves to nothing
		// an attacker can use, but it should not linger.
		s.logger.WithError(err).WithField("user_id", userID).
			Error("identity deleted but profile removal failed")
	}
	s.resolver.Invalidate(userID)

	s.recorder.Record(ctx, &audit.Entry{
		ActorID:    actor.ID,
		ActorEmail: actor.Email,
		Action:     audit.ActionUserDelete,
		Metadata: map[string]interface{}{
			"target_id":    userID,
			"target_email": profile.Email,
		},
	})

	return nil
}

// List returns the profiles visible to the caller.
func (s *Service) List(ctx context.Context, f scope.Filter, limit, offset int) ([]*profiles.Profile, int64, error) {
	list, err := s.store.List(ctx, f, limit, offset)
	if err != nil {
		return nil, 0, err
	}
	total, err := s.store.Count(ctx, f)
	if err != nil {
		return nil, 0, err
	}
	return list, total, nil
}
