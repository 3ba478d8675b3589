package scheduler

import (
	"fmt"
	"os"
	"path/filepath"
	"sort"

	"github.com/mansaraysaheedalpha/neuralaunch-sub005/internal/filelock"
	"github.com/mansaraysaheedalpha/neuralaunch-sub005/internal/models"
)

// artifactDirName sits under the work root; the quality gate reads from the
// same root through its sandboxed runner, so all returned paths are relative.
const artifactDirName = "artifacts"

// ArtifactStore materializes task outputs as files so the quality gate has
// concrete artifacts to review.
type ArtifactStore struct {
	root string
}

// NewArtifactStore creates an ArtifactStore rooted at the work directory.
func NewArtifactStore(root string) *ArtifactStore {
	return &ArtifactStore{root: root}
}

func (a *ArtifactStore) waveDir(waveNumber int) string {
	return filepath.Join(artifactDirName, fmt.Sprintf("wave-%d", waveNumber))
}

// WriteTaskOutput writes one completed task's output and returns the path
// relative to the work root.
func (a *ArtifactStore) WriteTaskOutput(task *models.Task) (string, error) {
	rel := filepath.Join(a.waveDir(task.WaveNumber), task.ID+".out")
	if err := filelock.AtomicWrite(filepath.Join(a.root, rel), []byte(task.Output)); err != nil {
		return "", fmt.Errorf("write artifact for task %s: %w", task.ID, err)
	}
	return rel, nil
}

// WaveFiles lists a wave's artifact paths relative to the work root.
func (a *ArtifactStore) WaveFiles(waveNumber int) ([]string, error) {
	dir := filepath.Join(a.root, a.waveDir(waveNumber))
	entries, err := os.ReadDir(dir)
	if os.IsNotExist(err) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("list wave %d artifacts: %w", waveNumber, err)
	}

	var files []string
	for _, entry := range entries {
		if entry.IsDir() {
			continue
		}
		files = append(files, filepath.Join(a.waveDir(waveNumber), entry.Name()))
	}
	sort.Strings(files)
	return files, nil
}

// Merge copies a wave's artifacts into the merged directory that accumulates
// the approved output of the whole run.
func (a *ArtifactStore) Merge(waveNumber int) error {
	files, err := a.WaveFiles(waveNumber)
	if err != nil {
		return err
	}
	for _, rel := range files {
		data, err := os.ReadFile(filepath.Join(a.root, rel))
		if err != nil {
			return fmt.Errorf("read artifact %s: %w", rel, err)
		}
		target := filepath.Join(a.root, artifactDirName, "merged", filepath.Base(rel))
		if err := filelock.AtomicWrite(target, data); err != nil {
			return fmt.Errorf("merge artifact %s: %w", rel, err)
		}
	}
	return nil
}
