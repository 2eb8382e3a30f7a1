package store

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"strings"

	"github.com/ynotnauk/go-irc/entities"
)

// IdentityFilesystemStore keeps one identity.<profileId>.json file per
// identity profile under storeLocation.
type IdentityFilesystemStore struct {
	storeLocation string
}

func (s *IdentityFilesystemStore) profilePath(profileId string) string {
	return filepath.Join(s.storeLocation, fmt.Sprintf("identity.%s.json", profileId))
}

func (s *IdentityFilesystemStore) GetProfile(profileId string) (*entities.IdentityProfile, error) {
	if profileId == "" {
		return nil, ErrBlankProfileId
	}
	fileContents, err := os.ReadFile(s.profilePath(profileId))
	if err != nil {
		return nil, err
	}
	profile := &entities.IdentityProfile{}
	if err := json.Unmarshal(fileContents, profile); err != nil {
		return nil, fmt.Errorf("decode identity profile %s: %w", profileId, err)
	}
	if profile.ID == "" {
		profile.ID = profileId
	}
	return profile, nil
}

func (s *IdentityFilesystemStore) SaveProfile(profile *entities.IdentityProfile) error {
	if profile.ID == "" {
		return ErrBlankProfileId
	}
	fileContents, err := json.MarshalIndent(profile, "", "  ")
	if err != nil {
		return err
	}
	return os.WriteFile(s.profilePath(profile.ID), fileContents, 0644)
}

// ListProfiles returns the ids of every stored profile, sorted.
func (s *IdentityFilesystemStore) ListProfiles() ([]string, error) {
	matches, err := filepath.Glob(filepath.Join(s.storeLocation, "identity.*.json"))
	if err != nil {
		return nil, err
	}
	ids := make([]string, 0, len(matches))
	for _, match := range matches {
		id := strings.TrimSuffix(strings.TrimPrefix(filepath.Base(match), "identity."), ".json")
		ids = append(ids, id)
	}
	sort.Strings(ids)
	return ids, nil
}

func NewIdentityFilesystemStore(storeLocation string) (*IdentityFilesystemStore, error) {
	if storeLocation == "" {
		return nil, ErrBlankStoreLocation
	}
	if err := os.MkdirAll(storeLocation, 0755); err != nil {
		return nil, err
	}
	return &IdentityFilesystemStore{storeLocation: storeLocation}, nil
}
