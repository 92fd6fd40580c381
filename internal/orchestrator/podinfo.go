package orchestrator

import (
	"context"
	"fmt"
	"strconv"
	"time"

	"github.com/google/uuid"

	"github.com/andrewkchan/podcrawl/internal/store"
)

const (
	keyPodInfo       = "pod:info"
	keySchemaVersion = "schema_version"
	schemaVersion    = 1

	fieldPodID         = "pod_id"
	fieldStoreURL      = "store_url"
	fieldInitializedAt = "initialized_at"
	fieldRunID         = "run_id"
)

// writePodInfo records the diagnostic pod:info hash and ensures
// schema_version is present, per spec.md §6. runID identifies this
// orchestrator invocation across every pod's record, so a post-mortem
// reader can tell which pods were initialized together.
func writePodInfo(ctx context.Context, client store.Client, podID int, storeURL string, runID uuid.UUID) error {
	fields := map[string]string{
		fieldPodID:         strconv.Itoa(podID),
		fieldStoreURL:      storeURL,
		fieldInitializedAt: strconv.FormatInt(time.Now().Unix(), 10),
		fieldRunID:         runID.String(),
	}

	if err := client.HashSet(ctx, keyPodInfo, fields); err != nil {
		return fmt.Errorf("orchestrator: write pod:info for pod %d: %w", podID, err)
	}

	if _, ok, err := client.Get(ctx, keySchemaVersion); err != nil {
		return fmt.Errorf("orchestrator: read schema_version for pod %d: %w", podID, err)
	} else if !ok {
		if err := client.Set(ctx, keySchemaVersion, []byte(strconv.Itoa(schemaVersion))); err != nil {
			return fmt.Errorf("orchestrator: write schema_version for pod %d: %w", podID, err)
		}
	}

	return nil
}
