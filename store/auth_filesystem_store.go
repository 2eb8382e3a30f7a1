package store

import (
	"encoding/json"
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"sort"
	"strings"

	"github.com/ynotnauk/go-irc/entities"
)

// AuthFilesystemStore keeps one auth.<networkId>.json file per network
// under storeLocation.
type AuthFilesystemStore struct {
	storeLocation string
}

func (s *AuthFilesystemStore) recordPath(networkId string) string {
	return filepath.Join(s.storeLocation, fmt.Sprintf("auth.%s.json", networkId))
}

func (s *AuthFilesystemStore) GetByNetworkId(networkId string) (*entities.AuthRecord, error) {
	if networkId == "" {
		return nil, ErrBlankNetworkId
	}
	// Read store
	fileContents, err := os.ReadFile(s.recordPath(networkId))
	if err != nil {
		return nil, err
	}
	// Write store to struct
	authRecord := &entities.AuthRecord{}
	err = json.Unmarshal(fileContents, authRecord)
	if err != nil {
		return nil, err
	}
	return authRecord, nil
}

func (s *AuthFilesystemStore) UpdateByNetworkId(auth *entities.AuthRecord) error {
	if auth.NetworkID == "" {
		return ErrBlankNetworkId
	}
	// Convert struct into a JSON byte array
	fileContents, err := json.MarshalIndent(auth, "", "  ")
	if err != nil {
		return err
	}
	// Credentials are readable by the owner only
	return os.WriteFile(s.recordPath(auth.NetworkID), fileContents, 0600)
}

// DeleteByNetworkId removes the record. A missing record is not an error.
func (s *AuthFilesystemStore) DeleteByNetworkId(networkId string) error {
	if networkId == "" {
		return ErrBlankNetworkId
	}
	err := os.Remove(s.recordPath(networkId))
	if errors.Is(err, fs.ErrNotExist) {
		return nil
	}
	return err
}

// ListNetworkIds returns the networks that have a stored record, sorted.
func (s *AuthFilesystemStore) ListNetworkIds() ([]string, error) {
	matches, err := filepath.Glob(filepath.Join(s.storeLocation, "auth.*.json"))
	if err != nil {
		return nil, err
	}
	networkIds := make([]string, 0, len(matches))
	for _, match := range matches {
		name := filepath.Base(match)
		networkIds = append(networkIds, strings.TrimSuffix(strings.TrimPrefix(name, "auth."), ".json"))
	}
	sort.Strings(networkIds)
	return networkIds, nil
}

func NewAuthFilesystemStore(storeLocation string) (*AuthFilesystemStore, error) {
	// Ensure store location is not blank
	if storeLocation == "" {
		return nil, ErrBlankStoreLocation
	}
	if err := os.MkdirAll(storeLocation, 0700); err != nil {
		return nil, err
	}
	store := &AuthFilesystemStore{
		storeLocation: storeLocation,
	}
	return store, nil
}
