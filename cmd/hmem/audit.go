package main

import (
	"encoding/json"
	"os"
	"path/filepath"
	"time"

	"github.com/spf13/cobra"

	"github.com/hmemdev/hmem/internal/audit"
	"github.com/hmemdev/hmem/internal/hmemerr"
	"github.com/hmemdev/hmem/internal/role"
)

var auditCmd = &cobra.Command{
	Use:   "audit",
	Short: "Curator audit-queue operations: get_audit_queue / mark_audited",
}

var auditQueueCmd = &cobra.Command{
	Use:   "queue",
	Short: "List agents whose store changed since their last audit",
	RunE: func(cmd *cobra.Command, args []string) error {
		if !role.IsCurator(envRole()) {
			return hmemerr.New(hmemerr.RoleDenied, "audit operations require the ceo role")
		}
		a := auditStore()
		candidates, err := discoverAgentStores(envRoot())
		if err != nil {
			return err
		}
		queue, err := a.BuildQueue(candidates)
		if err != nil {
			return err
		}
		return json.NewEncoder(os.Stdout).Encode(queue)
	},
}

var auditMarkCmd = &cobra.Command{
	Use:   "mark <agent-name>",
	Short: "Mark an agent's store as audited as of now",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		if !role.IsCurator(envRole()) {
			return hmemerr.New(hmemerr.RoleDenied, "audit operations require the ceo role")
		}
		a := auditStore()
		if err := a.MarkAudited(args[0], time.Now()); err != nil {
			return err
		}
		return json.NewEncoder(os.Stdout).Encode(map[string]any{"ok": true, "agent": args[0]})
	},
}

func auditStore() *audit.Store {
	return audit.New(filepath.Join(envRoot(), "audit_state.json"))
}

// discoverAgentStores scans Agents/<name>/<name>.hmem (and the
// Assistenten/ fallback) for every agent directory under root, the
// candidate set get_audit_queue compares against audit_state.json.
func discoverAgentStores(root string) (map[string]string, error) {
	out := map[string]string{}
	for _, base := range []string{"Agents", "Assistenten"} {
		dir := filepath.Join(root, base)
		entries, err := os.ReadDir(dir)
		if os.IsNotExist(err) {
			continue
		}
		if err != nil {
			return nil, err
		}
		for _, ent := range entries {
			if !ent.IsDir() {
				continue
			}
			name := ent.Name()
			if _, ok := out[name]; ok {
				continue
			}
			out[name] = filepath.Join(dir, name, name+".hmem")
		}
	}
	return out, nil
}

func init() {
	auditCmd.AddCommand(auditQueueCmd, auditMarkCmd)
}
