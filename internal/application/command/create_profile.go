package command

import (
	"context"

	"github.com/google/uuid"

	"github.com/alem-hub/alem-quest/internal/application/guard"
	"github.com/alem-hub/alem-quest/internal/domain/profile"
	"github.com/alem-hub/alem-quest/internal/domain/shared"
	"github.com/alem-hub/alem-quest/pkg/logger"
)

// CreateProfileCommand registers a learner.
type CreateProfileCommand struct {
	// ProfileID is generated when empty.
	ProfileID   string
	DisplayName string
}

// CreateProfileResult contains the stored profile. Created is false when a
// profile with the same id already existed and was returned unchanged.
type CreateProfileResult struct {
	Profile     *profile.Profile
	Created     bool
	SideEffects []shared.SideEffect
}

// CreateProfileHandler handles the CreateProfileCommand.
type CreateProfileHandler struct {
	deps Deps
}

// NewCreateProfileHandler creates a new CreateProfileHandler.
func NewCreateProfileHandler(deps Deps) *CreateProfileHandler {
	return &CreateProfileHandler{deps: deps.withDefaults("create_profile")}
}

// Handle executes the create profile command.
func (h *CreateProfileHandler) Handle(ctx context.Context, cmd CreateProfileCommand) (*CreateProfileResult, error) {
	raw := cmd.ProfileID
	if raw == "" {
		raw = uuid.NewString()
	}
	pid, err := shared.NewProfileID(raw)
	if err != nil {
		return nil, err
	}
	id := pid.String()

	p, err := profile.NewProfile(pid, cmd.DisplayName, h.deps.Clock.Now().UTC())
	if err != nil {
		return nil, err
	}

	err = h.deps.Guard.Do(ctx, "CreateProfile", func(ctx context.Context) error {
		return h.deps.Profiles.Create(ctx, p)
	})
	if shared.IsConflict(err) {
		existing, err := guard.Call(ctx, h.deps.Guard, "GetProfile", func(ctx context.Context) (*profile.Profile, error) {
			return h.deps.Profiles.GetByID(ctx, p.ID)
		})
		if err != nil {
			return nil, err
		}
		return &CreateProfileResult{Profile: existing}, nil
	}
	if err != nil {
		return nil, err
	}

	h.deps.Logger.Info("profile created", logger.ProfileID(id))
	event := shared.ProfileCreatedEvent{
		BaseEvent:   shared.NewBaseEvent(shared.EventProfileCreated, id, p.CreatedAt),
		ProfileID:   id,
		DisplayName: p.DisplayName,
	}
	return &CreateProfileResult{
		Profile:     p,
		Created:     true,
		SideEffects: publish(h.deps, []shared.Event{event}),
	}, nil
}
