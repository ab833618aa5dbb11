package main

import (
	"fmt"
	"os"
	"path/filepath"

	"github.com/hmemdev/hmem/internal/config"
	"github.com/hmemdev/hmem/internal/store"
	"github.com/hmemdev/hmem/internal/types"
)

// envRoot resolves the root directory from HMEM_ROOT (spec.md §6's
// required root-directory environment input), defaulting to the current
// working directory.
func envRoot() string {
	if v := os.Getenv("HMEM_ROOT"); v != "" {
		return v
	}
	wd, _ := os.Getwd()
	return wd
}

// envRole resolves HMEM_ROLE, defaulting to worker.
func envRole() types.Role {
	return types.ParseRole(os.Getenv("HMEM_ROLE"))
}

// envAgent resolves HMEM_AGENT, empty meaning the default personal store.
func envAgent() string {
	return os.Getenv("HMEM_AGENT")
}

// storePath resolves which .hmem file a logical store name addresses:
// "company" for the shared store, "" or "self" for the caller's own
// agent store (memory.hmem, or Agents/<NAME>/<NAME>.hmem when an agent
// identity is configured), per spec.md §6's on-disk layout.
func storePath(root, which, agent string) (string, error) {
	switch which {
	case "company":
		return filepath.Join(root, "company.hmem"), nil
	case "", "self":
		if agent == "" {
			return filepath.Join(root, "memory.hmem"), nil
		}
		p := filepath.Join(root, "Agents", agent, agent+".hmem")
		if _, err := os.Stat(p); err == nil {
			return p, nil
		}
		fallback := filepath.Join(root, "Assistenten", agent, agent+".hmem")
		if _, err := os.Stat(fallback); err == nil {
			return fallback, nil
		}
		return p, nil
	default:
		return "", fmt.Errorf("unknown store %q", which)
	}
}

// openStore resolves the config and opens the requested logical store.
func openStore(which string) (*store.Store, error) {
	root := envRoot()
	cfg := config.Load(root)
	path, err := storePath(root, which, envAgent())
	if err != nil {
		return nil, err
	}
	return store.Open(path, cfg)
}

// openForeignStore opens the named agent's store directly, bypassing the
// caller's own identity — used by the curator's *_agent_memory operations.
func openForeignStore(agentName string) (*store.Store, error) {
	root := envRoot()
	cfg := config.Load(root)
	path, err := storePath(root, "self", agentName)
	if err != nil {
		return nil, err
	}
	return store.Open(path, cfg)
}
