package record

import (
	"bytes"
	"encoding/json"
	"fmt"
	"os"
	"time"

	"deploytrack/pkg/fileutil"
)

// Load reads and structurally validates the data file.
//
// Returns a ParseError when the file is not valid JSON and a SchemaError
// when the top-level "deployments" key is missing or not an array.
func Load(path string) (*Store, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read data file: %w", err)
	}

	// Structural pass first so that a missing key and malformed JSON
	// surface as distinct errors.
	var raw map[string]json.RawMessage
	if err := json.Unmarshal(data, &raw); err != nil {
		return nil, &ParseError{Path: path, Err: err}
	}

	deployments, ok := raw["deployments"]
	if !ok {
		return nil, &SchemaError{Path: path, Msg: "missing required 'deployments' key"}
	}

	var store Store
	if err := json.Unmarshal(deployments, &store.Deployments); err != nil {
		return nil, &SchemaError{Path: path, Msg: fmt.Sprintf("'deployments' is not an array of records: %v", err)}
	}

	if lastUpdated, ok := raw["lastUpdated"]; ok {
		if err := json.Unmarshal(lastUpdated, &store.LastUpdated); err != nil {
			return nil, &SchemaError{Path: path, Msg: fmt.Sprintf("'lastUpdated' is not a string: %v", err)}
		}
	}

	return &store, nil
}

// Merge replaces each record in existing with its recomputed counterpart
// from computed, matched by Name. Records in computed without a match are
// appended, preserving their order.
//
// Duplicate names keep the first occurrence; every later duplicate is
// reported in the returned warnings and dropped from the result.
func Merge(existing, computed *Store) (*Store, []string) {
	var warnings []string

	replacements := make(map[string]Record, len(computed.Deployments))
	for _, rec := range computed.Deployments {
		if _, ok := replacements[rec.Name]; !ok {
			replacements[rec.Name] = rec
		}
	}

	merged := &Store{LastUpdated: existing.LastUpdated}
	existingNames := make(map[string]bool, len(existing.Deployments))
	for _, rec := range existing.Deployments {
		if existingNames[rec.Name] {
			warnings = append(warnings, fmt.Sprintf("duplicate deployment name %q: keeping first occurrence", rec.Name))
			continue
		}
		existingNames[rec.Name] = true

		if replacement, ok := replacements[rec.Name]; ok {
			merged.Deployments = append(merged.Deployments, replacement)
		} else {
			merged.Deployments = append(merged.Deployments, rec)
		}
	}

	appended := make(map[string]bool)
	for _, rec := range computed.Deployments {
		if existingNames[rec.Name] {
			continue
		}
		if appended[rec.Name] {
			warnings = append(warnings, fmt.Sprintf("duplicate deployment name %q: keeping first occurrence", rec.Name))
			continue
		}
		appended[rec.Name] = true
		merged.Deployments = append(merged.Deployments, rec)
	}

	return merged, warnings
}

// Save serializes the store back to the data file with stable key ordering
// (fixed struct field order, two-space indent) via an atomic replace, so a
// concurrent reader never observes a partial write.
func Save(store *Store, path string) error {
	data, err := marshalStore(store)
	if err != nil {
		return fmt.Errorf("failed to serialize store: %w", err)
	}

	if err := fileutil.WriteFileAtomic(path, data, 0644); err != nil {
		return fmt.Errorf("failed to write data file: %w", err)
	}

	return nil
}

// SaveIfChanged writes the store only when its deployments differ from what
// is already on disk. The lastUpdated timestamp is bumped only on a real
// change, so re-running the pipeline on unchanged input leaves the file
// byte-identical.
func SaveIfChanged(store *Store, path string) (bool, error) {
	if previous, err := Load(path); err == nil {
		if deploymentsEqual(previous, store) {
			return false, nil
		}
	}

	store.LastUpdated = time.Now().UTC().Format(time.RFC3339)

	if err := Save(store, path); err != nil {
		return false, err
	}
	return true, nil
}

// deploymentsEqual compares the serialized deployments arrays, ignoring
// the lastUpdated timestamp.
func deploymentsEqual(a, b *Store) bool {
	aj, err := json.Marshal(a.Deployments)
	if err != nil {
		return false
	}
	bj, err := json.Marshal(b.Deployments)
	if err != nil {
		return false
	}
	return bytes.Equal(aj, bj)
}

func marshalStore(store *Store) ([]byte, error) {
	data, err := json.MarshalIndent(store, "", "  ")
	if err != nil {
		return nil, err
	}
	return append(data, '\n'), nil
}
