package main

import (
	"fmt"
	"log"
	"os"
	"path/filepath"
	"strings"

	"quantumharvest.ai/internal/persistence/indexdb"
)

// openRuntimeIndex opens the match index. Returns nil (no error) when
// indexing is turned off; every caller treats a nil index as disabled.
func openRuntimeIndex(dataDir string, disableDB bool, logger *log.Logger) (*indexdb.SQLiteIndex, error) {
	if disableDB {
		return nil, nil
	}

	backend := strings.ToLower(strings.TrimSpace(os.Getenv("QH_INDEX_BACKEND")))
	if backend == "" {
		backend = "sqlite"
	}

	switch backend {
	case "none", "off", "disabled":
		logger.Printf("index backend disabled (QH_INDEX_BACKEND=%s)", backend)
		return nil, nil
	case "sqlite":
		return indexdb.OpenSQLite(filepath.Join(dataDir, "index", "matches.sqlite"))
	default:
		return nil, fmt.Errorf("unsupported QH_INDEX_BACKEND: %s", backend)
	}
}
