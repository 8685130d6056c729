package shard

// This file contains reading and writing of shard input files and the
// shard manifest.

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"

	"github.com/perfgo/vrtgo/model"
)

const ManifestFile = "chunks-config.json"

// FileName returns the file name of a shard's input file.
func FileName(id string) string {
	return fmt.Sprintf("urls-%s.json", id)
}

// Write writes one input file per shard and the manifest into dir.
func Write(dir string, shards []Shard) (model.Manifest, error) {
	manifest := model.Manifest{Chunks: make([]string, 0, len(shards))}

	if err := os.MkdirAll(dir, 0755); err != nil {
		return manifest, fmt.Errorf("failed to create shard directory: %w", err)
	}

	for _, s := range shards {
		if err := writeJSON(filepath.Join(dir, FileName(s.ID)), s.Records); err != nil {
			return manifest, fmt.Errorf("failed to write shard %s: %w", s.ID, err)
		}
		manifest.Chunks = append(manifest.Chunks, s.ID)
	}

	if err := writeJSON(filepath.Join(dir, ManifestFile), manifest); err != nil {
		return manifest, fmt.Errorf("failed to write shard manifest: %w", err)
	}

	return manifest, nil
}

// ReadRecords reads a JSON array of URL pairs.
func ReadRecords(path string) ([]model.URLPair, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read URL list: %w", err)
	}

	var records []model.URLPair
	if err := json.Unmarshal(data, &records); err != nil {
		return nil, fmt.Errorf("failed to parse %s: %w", path, err)
	}
	return records, nil
}

// WriteRecords writes records as an indented JSON array, creating the
// parent directory.
func WriteRecords(path string, records []model.URLPair) error {
	if records == nil {
		records = []model.URLPair{}
	}
	if err := os.MkdirAll(filepath.Dir(path), 0755); err != nil {
		return fmt.Errorf("failed to create directory: %w", err)
	}
	if err := writeJSON(path, records); err != nil {
		return fmt.Errorf("failed to write URL list: %w", err)
	}
	return nil
}

// ReadShard reads the input file of one shard.
func ReadShard(dir, id string) ([]model.URLPair, error) {
	return ReadRecords(filepath.Join(dir, FileName(id)))
}

// ReadManifest reads the shard manifest from dir.
func ReadManifest(dir string) (model.Manifest, error) {
	var manifest model.Manifest
	data, err := os.ReadFile(filepath.Join(dir, ManifestFile))
	if err != nil {
		return manifest, err
	}
	if err := json.Unmarshal(data, &manifest); err != nil {
		return manifest, fmt.Errorf("failed to parse shard manifest: %w", err)
	}
	return manifest, nil
}

func writeJSON(path string, v any) error {
	data, err := json.MarshalIndent(v, "", "  ")
	if err != nil {
		return err
	}
	return os.WriteFile(path, data, 0644)
}
