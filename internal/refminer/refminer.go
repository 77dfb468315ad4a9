// Package refminer wraps the external RefactoringMiner tool and caches
// its per-commit output.
package refminer

import (
	"encoding/json"
	"fmt"
	"os/exec"

	"go.uber.org/zap"
)

// Location is the post-image side of a refactoring: a file path plus
// an inclusive line range.
type Location struct {
	FilePath  string `json:"filePath"`
	StartLine int    `json:"startLine"`
	EndLine   int    `json:"endLine"`
}

// Contains returns true if (filePath, line) falls inside the location.
func (l Location) Contains(filePath string, line int) bool {
	return l.FilePath == filePath && l.StartLine <= line && line <= l.EndLine
}

// Refactoring is one detected refactoring operation.
type Refactoring struct {
	Type               string     `json:"type"`
	RightSideLocations []Location `json:"rightSideLocations"`
}

// Detector yields the refactorings of a commit. The RA variant
// receives it as an injectable port so tests can stub it.
type Detector interface {
	Refactorings(commitHash string) ([]Refactoring, error)
}

// minerOutput mirrors the RefactoringMiner JSON layout.
type minerOutput struct {
	Commits []struct {
		Refactorings []Refactoring `json:"refactorings"`
	} `json:"commits"`
}

// Miner invokes `RefactoringMiner -c <repo> <commit>` and memoizes
// results in an optional cache.
type Miner struct {
	binPath  string
	repoPath string
	cache    *Cache
	log      *zap.Logger
}

// NewMiner builds a Miner for the given repository working copy.
// cache may be nil.
func NewMiner(binPath, repoPath string, cache *Cache, log *zap.Logger) *Miner {
	return &Miner{binPath: binPath, repoPath: repoPath, cache: cache, log: log}
}

// Refactorings runs the miner for a commit, consulting the cache first.
func (m *Miner) Refactorings(commitHash string) ([]Refactoring, error) {
	if m.cache != nil {
		if payload, ok := m.cache.Get(commitHash); ok {
			return parseMinerOutput(payload)
		}
	}

	m.log.Info("running RefactoringMiner", zap.String("commit", commitHash))
	out, err := exec.Command(m.binPath, "-c", m.repoPath, commitHash).Output()
	if err != nil {
		return nil, fmt.Errorf("RefactoringMiner on %s: %w", commitHash, err)
	}

	refs, err := parseMinerOutput(out)
	if err != nil {
		return nil, err
	}
	if m.cache != nil {
		if err := m.cache.Put(commitHash, out); err != nil {
			m.log.Warn("refminer cache write failed", zap.String("commit", commitHash), zap.Error(err))
		}
	}
	return refs, nil
}

// parseMinerOutput decodes the miner JSON. The miner always reports a
// single commit entry for a -c invocation.
func parseMinerOutput(payload []byte) ([]Refactoring, error) {
	var out minerOutput
	if err := json.Unmarshal(payload, &out); err != nil {
		return nil, fmt.Errorf("parse RefactoringMiner output: %w", err)
	}
	if len(out.Commits) == 0 {
		return nil, nil
	}
	return out.Commits[0].Refactorings, nil
}
