package host

import (
	"context"
	"errors"
	"fmt"
	"os"

	"github.com/pelletier/go-toml/v2"

	"github.com/bft-labs/studykit/pkg/eligibility"
	"github.com/bft-labs/studykit/pkg/study"
)

// permissionFile is the on-disk consent record, for example:
//
//	shield = true
//	pioneer = false
type permissionFile struct {
	Shield  bool `toml:"shield"`
	Pioneer bool `toml:"pioneer"`
}

// PermissionFile answers consent queries from a TOML file. A missing file
// means consent has not been granted.
type PermissionFile struct {
	Path      string
	StudyType study.StudyType
}

// NewPermissionFile returns a PermissionFile for studyType.
func NewPermissionFile(path string, studyType study.StudyType) *PermissionFile {
	return &PermissionFile{Path: path, StudyType: studyType}
}

// QueryConsent implements eligibility.Permissions.
func (p *PermissionFile) QueryConsent(ctx context.Context) (eligibility.Consent, error) {
	if err := ctx.Err(); err != nil {
		return eligibility.Consent{}, err
	}
	data, err := os.ReadFile(p.Path)
	if errors.Is(err, os.ErrNotExist) {
		return eligibility.Consent{}, nil
	}
	if err != nil {
		return eligibility.Consent{}, fmt.Errorf("read permissions: %w", err)
	}

	var pf permissionFile
	if err := toml.Unmarshal(data, &pf); err != nil {
		return eligibility.Consent{}, fmt.Errorf("parse permissions %s: %w", p.Path, err)
	}
	switch p.StudyType {
	case study.StudyTypePioneer:
		return eligibility.Consent{Granted: pf.Pioneer}, nil
	default:
		return eligibility.Consent{Granted: pf.Shield}, nil
	}
}
