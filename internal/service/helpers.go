package service

import (
	"github.com/google/uuid"

	apperrors "github.com/spec-kit/helpdesk/pkg/util"
)

var errAuthRequired = apperrors.NewUnauthorized("authentication required")

// requireID turns ids that can never exist into a NotFound for resource.
func requireID(resource, id string) error {
	if _, err := uuid.Parse(id); err != nil {
		return apperrors.NewNotFound(resource, map[string]any{"id": id})
	}
	return nil
}

func cloneString(s *string) *string {
	if s == nil {
		return nil
	}
	v := *s
	return &v
}

func uniqueStrings(values []string) []string {
	seen := make(map[string]struct{}, len(values))
	out := make([]string, 0, len(values))
	for _, v := range values {
		if _, ok := seen[v]; ok {
			continue
		}
		seen[v] = struct{}{}
		out = append(out, v)
	}
	return out
}
