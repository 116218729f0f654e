package service

import (
	"strings"

	"github.com/hoofs-app/hoofs/internal/model"
)

// UpsertUser creates or replaces a user profile and returns the stored row.
// The plan must be a known tier; an enabled channel without its address is
// accepted (the dispatcher skips it) so profiles can be staged before tokens
// arrive.
func (s *AdminService) UpsertUser(p model.UserProfile) (model.UserProfile, error) {
	if p.ID == "" {
		return model.UserProfile{}, invalidArg("user id is required")
	}
	if _, err := model.ParsePlan(string(p.Plan)); err != nil {
		return model.UserProfile{}, invalidArg(err.Error())
	}
	if p.Email != "" && !strings.Contains(p.Email, "@") {
		return model.UserProfile{}, invalidArg("email must contain @")
	}
	if err := s.Repo.UpsertUserProfile(p); err != nil {
		return model.UserProfile{}, internal("upsert user", err)
	}
	stored, err := s.Repo.GetUserProfile(p.ID)
	if err != nil {
		return model.UserProfile{}, internal("read back user", err)
	}
	return stored, nil
}
