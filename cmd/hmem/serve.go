package main

import (
	"bufio"
	"context"
	"encoding/json"
	"errors"
	"io"
	"log/slog"
	"os"
	"path/filepath"
	"time"

	"github.com/spf13/cobra"

	"github.com/hmemdev/hmem/internal/audit"
	"github.com/hmemdev/hmem/internal/format"
	"github.com/hmemdev/hmem/internal/hmemerr"
	"github.com/hmemdev/hmem/internal/read"
	"github.com/hmemdev/hmem/internal/role"
	"github.com/hmemdev/hmem/internal/session"
	"github.com/hmemdev/hmem/internal/store"
	"github.com/hmemdev/hmem/internal/types"
)

// serveCmd implements spec.md §6's tool surface as a line-delimited JSON
// stdio transport: one request object per line in, one response object
// per line out. Grounded on the teacher's cmd/bd daemon-mode handling
// (internal/daemon) of a persistent foreground process serving one
// client at a time, generalized here from a unix-socket RPC loop to a
// plain stdio loop since hmem has no long-lived daemon process.
var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Run the line-delimited JSON stdio transport",
	RunE: func(cmd *cobra.Command, args []string) error {
		return runServer(os.Stdin, os.Stdout)
	},
}

type rpcRequest struct {
	Op     string          `json:"op"`
	Params json.RawMessage `json:"params"`
}

type rpcResponse struct {
	OK     bool   `json:"ok"`
	Result any    `json:"result,omitempty"`
	Error  string `json:"error,omitempty"`
	Kind   string `json:"kind,omitempty"`
}

// server holds the process-lifetime state a stdio connection needs
// across requests: one session cache per logical store (self/company),
// matching spec.md §4.5's per-connection session-cache scope.
type server struct {
	sessions map[string]*session.Cache
}

func newServer() *server {
	return &server{sessions: map[string]*session.Cache{}}
}

func runServer(in io.Reader, out io.Writer) error {
	srv := newServer()
	scanner := bufio.NewScanner(in)
	scanner.Buffer(make([]byte, 0, 64*1024), 16*1024*1024)
	enc := json.NewEncoder(out)

	for scanner.Scan() {
		line := scanner.Bytes()
		if len(line) == 0 {
			continue
		}
		var req rpcRequest
		if err := json.Unmarshal(line, &req); err != nil {
			slog.Warn("malformed request line", "error", err)
			_ = enc.Encode(rpcResponse{OK: false, Error: err.Error()})
			continue
		}
		result, err := srv.dispatch(req)
		if err != nil {
			resp := rpcResponse{OK: false, Error: err.Error()}
			var herr *hmemerr.Error
			if errors.As(err, &herr) {
				resp.Kind = string(herr.Kind)
			}
			slog.Info("op failed", "op", req.Op, "kind", resp.Kind, "error", err)
			_ = enc.Encode(resp)
			continue
		}
		slog.Info("op ok", "op", req.Op)
		_ = enc.Encode(rpcResponse{OK: true, Result: result})
	}
	return scanner.Err()
}

func (srv *server) dispatch(req rpcRequest) (any, error) {
	switch req.Op {
	case "write_memory":
		return srv.writeMemory(req.Params)
	case "update_memory":
		return srv.updateMemory(req.Params)
	case "append_memory":
		return srv.appendMemory(req.Params)
	case "read_memory":
		return srv.readMemory(req.Params)
	case "get_audit_queue":
		return srv.getAuditQueue()
	case "read_agent_memory":
		return srv.readAgentMemory(req.Params)
	case "fix_agent_memory":
		return srv.fixAgentMemory(req.Params)
	case "append_agent_memory":
		return srv.appendAgentMemory(req.Params)
	case "delete_agent_memory":
		return srv.deleteAgentMemory(req.Params)
	case "mark_audited":
		return srv.markAudited(req.Params)
	default:
		return nil, hmemerr.New(hmemerr.InvalidConfig, "unknown op %q", req.Op)
	}
}

func requireCurator() error {
	if !role.IsCurator(envRole()) {
		return hmemerr.New(hmemerr.RoleDenied, "this operation requires the ceo role")
	}
	return nil
}

func requireCompanyWrite(which string) error {
	if which == "company" && !role.CanWriteCompany(envRole()) {
		return hmemerr.New(hmemerr.RoleDenied, "role %q may not write to the company store", envRole())
	}
	return nil
}

type writeParams struct {
	Prefix   string   `json:"prefix"`
	Content  string   `json:"content"`
	Links    []string `json:"links"`
	Favorite bool     `json:"favorite"`
	Pinned   bool     `json:"pinned"`
	Tags     []string `json:"tags"`
	MinRole  string   `json:"min_role"`
	Store    string   `json:"store"`
}

func (srv *server) writeMemory(raw json.RawMessage) (any, error) {
	var p writeParams
	if err := json.Unmarshal(raw, &p); err != nil {
		return nil, err
	}
	if err := requireCompanyWrite(p.Store); err != nil {
		return nil, err
	}
	s, err := openStore(p.Store)
	if err != nil {
		return nil, err
	}
	defer s.Close()

	return s.Write(context.Background(), p.Prefix, p.Content, store.WriteOptions{
		Links: p.Links, MinRole: p.MinRole, Favorite: p.Favorite, Pinned: p.Pinned, Tags: p.Tags,
	})
}

type updateParams struct {
	ID            string    `json:"id"`
	Content       string    `json:"content"`
	Links         *[]string `json:"links"`
	Obsolete      *bool     `json:"obsolete"`
	Favorite      *bool     `json:"favorite"`
	Irrelevant    *bool     `json:"irrelevant"`
	Pinned        *bool     `json:"pinned"`
	Tags          *[]string `json:"tags"`
	CuratorBypass bool      `json:"curator_bypass"`
	Store         string    `json:"store"`
}

func (srv *server) updateMemory(raw json.RawMessage) (any, error) {
	var p updateParams
	if err := json.Unmarshal(raw, &p); err != nil {
		return nil, err
	}
	if err := requireCompanyWrite(p.Store); err != nil {
		return nil, err
	}
	s, err := openStore(p.Store)
	if err != nil {
		return nil, err
	}
	defer s.Close()

	err = s.UpdateNode(context.Background(), p.ID, p.Content, store.UpdateOptions{
		Links: p.Links, Obsolete: p.Obsolete, Favorite: p.Favorite, Irrelevant: p.Irrelevant,
		Pinned: p.Pinned, Tags: p.Tags, CuratorBypass: p.CuratorBypass && role.IsCurator(envRole()),
	})
	if err != nil {
		return nil, err
	}
	return map[string]any{"ok": true}, nil
}

type appendParams struct {
	ID      string `json:"id"`
	Content string `json:"content"`
	Store   string `json:"store"`
}

func (srv *server) appendMemory(raw json.RawMessage) (any, error) {
	var p appendParams
	if err := json.Unmarshal(raw, &p); err != nil {
		return nil, err
	}
	if err := requireCompanyWrite(p.Store); err != nil {
		return nil, err
	}
	s, err := openStore(p.Store)
	if err != nil {
		return nil, err
	}
	defer s.Close()

	return s.AppendChildren(context.Background(), p.ID, p.Content)
}

type readParams struct {
	ID             string `json:"id"`
	Prefix         string `json:"prefix"`
	After          string `json:"after"`
	Before         string `json:"before"`
	Search         string `json:"search"`
	TimeAround     string `json:"time_around"`
	Period         string `json:"period"`
	ShowObsolete   bool   `json:"show_obsolete"`
	Limit          int    `json:"limit"`
	TitlesOnly     bool   `json:"titles_only"`
	Expand         bool   `json:"expand"`
	Curator        bool   `json:"curator"`
	Tag            string `json:"tag"`
	FollowObsolete *bool  `json:"follow_obsolete"`
	Store          string `json:"store"`
}

func (srv *server) readMemory(raw json.RawMessage) (any, error) {
	var p readParams
	if err := json.Unmarshal(raw, &p); err != nil {
		return nil, err
	}

	s, err := openStore(p.Store)
	if err != nil {
		return nil, err
	}
	defer s.Close()

	sess, ok := srv.sessions[p.Store]
	if !ok {
		sess = session.New(s.Config().SessionWindows)
		srv.sessions[p.Store] = sess
		slog.Debug("opened session cache", "store", p.Store, "handle", sess.Handle)
	}

	opts := read.Options{
		ID: p.ID, Prefix: p.Prefix, Search: p.Search, TimeAround: p.TimeAround,
		Period: p.Period, ShowObsolete: p.ShowObsolete, Limit: p.Limit,
		TitlesOnly: p.TitlesOnly, Expand: p.Expand, ShowAll: p.Curator && role.IsCurator(envRole()),
		Tag: p.Tag, FollowObsolete: p.FollowObsolete,
	}
	if p.Store == "company" {
		opts.CallerRole = envRole()
	} else {
		opts.CallerRole = types.RoleCEO
	}
	if p.After != "" {
		if t, err := time.Parse(time.RFC3339, p.After); err == nil {
			opts.After = &t
		}
	}
	if p.Before != "" {
		if t, err := time.Parse(time.RFC3339, p.Before); err == nil {
			opts.Before = &t
		}
	}

	engine := read.New(s, sess)
	result, err := engine.Read(opts)
	if err != nil {
		return nil, err
	}

	renderer := format.New(role.IsCurator(envRole()), s.Config().PrefixDescriptions)
	renderer.Plain = true
	var rendered string
	if opts.ID != "" {
		rendered = renderer.RenderByID(result.Entries)
	} else {
		rendered = renderer.RenderBulk(result.Entries, 0)
	}

	return map[string]any{
		"entries": result.Entries,
		"text":    rendered,
		"warning": result.Warning,
	}, nil
}

func (srv *server) getAuditQueue() (any, error) {
	if err := requireCurator(); err != nil {
		return nil, err
	}
	root := envRoot()
	candidates, err := discoverAgentStores(root)
	if err != nil {
		return nil, err
	}
	a := audit.New(filepath.Join(root, "audit_state.json"))
	return a.BuildQueue(candidates)
}

type agentParams struct {
	AgentName string `json:"agent_name"`
	Depth     int    `json:"depth"`
}

func (srv *server) readAgentMemory(raw json.RawMessage) (any, error) {
	if err := requireCurator(); err != nil {
		return nil, err
	}
	var p agentParams
	if err := json.Unmarshal(raw, &p); err != nil {
		return nil, err
	}
	s, err := openForeignStore(p.AgentName)
	if err != nil {
		return nil, err
	}
	defer s.Close()

	sess := session.New(s.Config().SessionWindows)
	engine := read.New(s, sess)
	result, err := engine.Read(read.Options{ShowAll: true, CallerRole: types.RoleCEO})
	if err != nil {
		return nil, err
	}
	renderer := format.New(true, s.Config().PrefixDescriptions)
	renderer.Plain = true
	return map[string]any{"text": renderer.RenderBulk(result.Entries, 0), "entries": result.Entries}, nil
}

type fixParams struct {
	AgentName string  `json:"agent_name"`
	EntryID   string  `json:"entry_id"`
	Content   string  `json:"content"`
	MinRole   *string `json:"min_role"`
	Obsolete  *bool   `json:"obsolete"`
	Favorite  *bool   `json:"favorite"`
}

func (srv *server) fixAgentMemory(raw json.RawMessage) (any, error) {
	if err := requireCurator(); err != nil {
		return nil, err
	}
	var p fixParams
	if err := json.Unmarshal(raw, &p); err != nil {
		return nil, err
	}
	s, err := openForeignStore(p.AgentName)
	if err != nil {
		return nil, err
	}
	defer s.Close()

	err = s.UpdateNode(context.Background(), p.EntryID, p.Content, store.UpdateOptions{
		Obsolete: p.Obsolete, Favorite: p.Favorite, MinRole: p.MinRole, CuratorBypass: true,
	})
	if err != nil {
		return nil, err
	}
	return map[string]any{"ok": true}, nil
}

func (srv *server) appendAgentMemory(raw json.RawMessage) (any, error) {
	if err := requireCurator(); err != nil {
		return nil, err
	}
	var p struct {
		AgentName string `json:"agent_name"`
		ID        string `json:"id"`
		Content   string `json:"content"`
	}
	if err := json.Unmarshal(raw, &p); err != nil {
		return nil, err
	}
	s, err := openForeignStore(p.AgentName)
	if err != nil {
		return nil, err
	}
	defer s.Close()
	return s.AppendChildren(context.Background(), p.ID, p.Content)
}

func (srv *server) deleteAgentMemory(raw json.RawMessage) (any, error) {
	if err := requireCurator(); err != nil {
		return nil, err
	}
	var p struct {
		AgentName string `json:"agent_name"`
		EntryID   string `json:"entry_id"`
	}
	if err := json.Unmarshal(raw, &p); err != nil {
		return nil, err
	}
	s, err := openForeignStore(p.AgentName)
	if err != nil {
		return nil, err
	}
	defer s.Close()
	if err := s.Delete(context.Background(), p.EntryID); err != nil {
		return nil, err
	}
	return map[string]any{"ok": true}, nil
}

func (srv *server) markAudited(raw json.RawMessage) (any, error) {
	if err := requireCurator(); err != nil {
		return nil, err
	}
	var p struct {
		AgentName string `json:"agent_name"`
	}
	if err := json.Unmarshal(raw, &p); err != nil {
		return nil, err
	}
	a := audit.New(filepath.Join(envRoot(), "audit_state.json"))
	if err := a.MarkAudited(p.AgentName, time.Now()); err != nil {
		return nil, err
	}
	return map[string]any{"ok": true}, nil
}
