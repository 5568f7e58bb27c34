// Package lsp serves refit's proposals to editors as Language Server
// Protocol code actions over stdio.
//
// The server keeps open documents in memory, republishes syntax errors on
// every change and answers textDocument/codeAction with one action per
// proposal. Applying an action is left to the editor.
package lsp

import (
	"bufio"
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"os"
	"strings"

	"refit/internal/assist"
	"refit/internal/binding"
	"refit/internal/diag"
	"refit/internal/javaparse"
	"refit/internal/render"
	"refit/internal/rules"
	"refit/internal/source"
	"refit/internal/version"
)

var (
	// ErrExit signals a graceful shutdown after receiving "exit".
	ErrExit = errors.New("lsp exit")
	// ErrExitWithoutShutdown signals an "exit" without a preceding "shutdown".
	ErrExitWithoutShutdown = errors.New("lsp exit without shutdown")
)

// Code action kinds sent to the editor.
const (
	KindQuickFix = "quickfix"
	KindRewrite  = "refactor.rewrite"
)

// ServerOptions configures the server.
type ServerOptions struct {
	Engine  assist.Engine
	Catalog *binding.Catalog
	Format  render.FormattingOptions
	// ParseCacheSize bounds the parse cache; 0 means 64 documents.
	ParseCacheSize int
	// Log receives protocol problems; nil means stderr.
	Log io.Writer
}

type document struct {
	text    string
	version int
}

// Server handles stdio JSON-RPC for one editor session. Messages are
// handled one at a time in arrival order.
type Server struct {
	in   *bufio.Reader
	out  *bufio.Writer
	log  io.Writer
	opts ServerOptions

	parseCache  *javaparse.Cache
	docs        map[string]*document
	initialized bool
	shutdown    bool
}

// NewServer constructs a server reading from in and writing to out.
func NewServer(in io.Reader, out io.Writer, opts ServerOptions) (*Server, error) {
	if opts.Catalog == nil {
		cat, err := binding.DefaultCatalog()
		if err != nil {
			return nil, err
		}
		opts.Catalog = cat
	}
	size := opts.ParseCacheSize
	if size <= 0 {
		size = 64
	}
	cache, err := javaparse.NewCache(size)
	if err != nil {
		return nil, err
	}
	logOut := opts.Log
	if logOut == nil {
		logOut = os.Stderr
	}
	return &Server{
		in:         bufio.NewReader(in),
		out:        bufio.NewWriter(out),
		log:        logOut,
		opts:       opts,
		parseCache: cache,
		docs:       make(map[string]*document),
	}, nil
}

// Run serves requests until exit or end of input. A clean "exit" after
// "shutdown" returns ErrExit.
func (s *Server) Run(ctx context.Context) error {
	for {
		if err := ctx.Err(); err != nil {
			return err
		}
		payload, err := readMessage(s.in)
		if err != nil {
			if errors.Is(err, io.EOF) {
				return nil
			}
			return err
		}
		var msg rpcMessage
		if err := json.Unmarshal(payload, &msg); err != nil {
			s.logf("failed to parse message: %v", err)
			if err := s.sendError(nil, codeParseError, "parse error"); err != nil {
				return err
			}
			continue
		}
		if msg.Method == "" {
			continue
		}
		if err := s.handleMessage(ctx, &msg); err != nil {
			return err
		}
	}
}

func (s *Server) handleMessage(ctx context.Context, msg *rpcMessage) error {
	switch msg.Method {
	case "initialize":
		return s.handleInitialize(msg)
	case "initialized":
		return nil
	case "shutdown":
		s.shutdown = true
		return s.sendResponse(msg.ID, nil)
	case "exit":
		if s.shutdown {
			return ErrExit
		}
		return ErrExitWithoutShutdown
	}
	if !s.initialized {
		if len(msg.ID) > 0 {
			return s.sendError(msg.ID, codeNotInitialized, "server not initialized")
		}
		return nil
	}

	switch msg.Method {
	case "textDocument/didOpen":
		return s.handleDidOpen(ctx, msg)
	case "textDocument/didChange":
		return s.handleDidChange(ctx, msg)
	case "textDocument/didClose":
		return s.handleDidClose(msg)
	case "textDocument/codeAction":
		return s.handleCodeAction(ctx, msg)
	default:
		if len(msg.ID) > 0 {
			return s.sendError(msg.ID, codeMethodNotFound, "method not found")
		}
		return nil
	}
}

func (s *Server) handleInitialize(msg *rpcMessage) error {
	s.initialized = true
	return s.sendResponse(msg.ID, initializeResult{
		Capabilities: serverCapabilities{
			TextDocumentSync:   textDocumentSyncOptions{OpenClose: true, Change: 2},
			CodeActionProvider: codeActionOptions{CodeActionKinds: []string{KindQuickFix, KindRewrite}},
		},
		ServerInfo: serverInfo{Name: "refit", Version: version.Version},
	})
}

func (s *Server) handleDidOpen(ctx context.Context, msg *rpcMessage) error {
	var params didOpenTextDocumentParams
	if err := json.Unmarshal(msg.Params, &params); err != nil {
		s.logf("didOpen: %v", err)
		return nil
	}
	uri := params.TextDocument.URI
	s.docs[uri] = &document{text: params.TextDocument.Text, version: params.TextDocument.Version}
	return s.publishSyntax(ctx, uri)
}

func (s *Server) handleDidChange(ctx context.Context, msg *rpcMessage) error {
	var params didChangeTextDocumentParams
	if err := json.Unmarshal(msg.Params, &params); err != nil {
		s.logf("didChange: %v", err)
		return nil
	}
	uri := params.TextDocument.URI
	doc, ok := s.docs[uri]
	if !ok {
		s.logf("didChange for unopened %s", uri)
		return nil
	}
	doc.text = applyChanges(doc.text, params.ContentChanges)
	doc.version = params.TextDocument.Version
	return s.publishSyntax(ctx, uri)
}

func (s *Server) handleDidClose(msg *rpcMessage) error {
	var params didCloseTextDocumentParams
	if err := json.Unmarshal(msg.Params, &params); err != nil {
		s.logf("didClose: %v", err)
		return nil
	}
	uri := params.TextDocument.URI
	if _, ok := s.docs[uri]; !ok {
		return nil
	}
	delete(s.docs, uri)
	return s.sendNotification("textDocument/publishDiagnostics", publishDiagnosticsParams{URI: uri, Diagnostics: []lspDiagnostic{}})
}

// snapshot parses the open document behind uri. Line endings are normalized
// for analysis; crlf reports whether edits must put them back.
func (s *Server) snapshot(ctx context.Context, uri string) (snap *assist.Snapshot, crlf bool, err error) {
	doc, ok := s.docs[uri]
	if !ok {
		return nil, false, fmt.Errorf("document %s is not open", uri)
	}
	content := []byte(doc.text)
	crlf = bytes.Contains(content, []byte("\r\n"))
	if crlf {
		content = bytes.ReplaceAll(content, []byte("\r\n"), []byte("\n"))
	}
	fs := source.NewFileSet()
	path := uriToPath(uri)
	if path == "" {
		path = uri
	}
	file := fs.Get(fs.AddVirtual(path, content))
	snap, err = assist.NewSnapshot(ctx, s.parseCache, s.opts.Catalog, file, s.opts.Format)
	return snap, crlf, err
}

func (s *Server) publishSyntax(ctx context.Context, uri string) error {
	snap, _, err := s.snapshot(ctx, uri)
	if err != nil {
		s.logf("analyze %s: %v", uri, err)
		return nil
	}
	list := make([]lspDiagnostic, 0, len(snap.Diagnostics))
	for _, d := range snap.Diagnostics {
		list = append(list, lspDiagnostic{
			Range:    rangeOf(snap.File, d.Primary),
			Severity: lspSeverity(d.Severity),
			Code:     d.Code.ID(),
			Source:   "refit",
			Message:  d.Message,
		})
	}
	return s.sendNotification("textDocument/publishDiagnostics", publishDiagnosticsParams{
		URI:         uri,
		Version:     s.docs[uri].version,
		Diagnostics: list,
	})
}

func lspSeverity(sev diag.Severity) int {
	switch sev {
	case diag.SevError:
		return 1
	case diag.SevWarning:
		return 2
	default:
		return 3
	}
}

func (s *Server) handleCodeAction(ctx context.Context, msg *rpcMessage) error {
	var params codeActionParams
	if err := json.Unmarshal(msg.Params, &params); err != nil {
		return s.sendError(msg.ID, codeInvalidParams, "invalid params")
	}
	uri := params.TextDocument.URI
	snap, crlf, err := s.snapshot(ctx, uri)
	if err != nil {
		return s.sendError(msg.ID, codeInvalidParams, err.Error())
	}
	start := offsetOf(snap.File, params.Range.Start)
	end := max(offsetOf(snap.File, params.Range.End), start)
	props, err := s.opts.Engine.ComputeProposals(ctx, snap, int(start), int(end-start))
	if err != nil {
		return s.sendError(msg.ID, codeInternalError, err.Error())
	}

	doc := versionedTextDocumentIdentifier{URI: uri, Version: s.docs[uri].version}
	actions := make([]codeAction, 0, len(props))
	for i, p := range props {
		kind := actionKind(p.RuleID)
		if !kindAllowed(kind, params.Context.Only) {
			continue
		}
		actions = append(actions, toCodeAction(snap.File, doc, p, kind, i == 0, crlf))
	}
	return s.sendResponse(msg.ID, actions)
}

// actionKind maps the exceptions family to quick fixes and everything else
// to rewrites.
func actionKind(ruleID string) string {
	if k, ok := rules.Lookup(ruleID); ok && k.Info().Family == "exceptions" {
		return KindQuickFix
	}
	return KindRewrite
}

// kindAllowed applies the client's "only" filter; a requested kind matches
// itself and every kind nested under it.
func kindAllowed(kind string, only []string) bool {
	if len(only) == 0 {
		return true
	}
	for _, k := range only {
		if kind == k || strings.HasPrefix(kind, k+".") {
			return true
		}
	}
	return false
}

func toCodeAction(file *source.File, doc versionedTextDocumentIdentifier, p assist.Proposal, kind string, preferred, crlf bool) codeAction {
	action := codeAction{Title: p.Label, Kind: kind, IsPreferred: preferred && p.Status.OK}
	if !p.Status.OK {
		action.Title += " (" + p.Status.Reason + ")"
	}
	if len(p.Edits) == 0 {
		action.Disabled = &codeActionDisabled{Reason: "nothing to change"}
		return action
	}
	edits := make([]textEdit, 0, len(p.Edits))
	for _, e := range p.Edits {
		text := e.NewText
		if crlf {
			text = strings.ReplaceAll(text, "\n", "\r\n")
		}
		edits = append(edits, textEdit{Range: rangeOf(file, e.Span), NewText: text})
	}
	action.Edit = &workspaceEdit{DocumentChanges: []textDocumentEdit{{TextDocument: doc, Edits: edits}}}
	return action
}

func (s *Server) sendResponse(id json.RawMessage, result any) error {
	return s.send(map[string]any{
		"jsonrpc": "2.0",
		"id":      id,
		"result":  result,
	})
}

func (s *Server) sendError(id json.RawMessage, code int, message string) error {
	if id == nil {
		id = json.RawMessage("null")
	}
	return s.send(map[string]any{
		"jsonrpc": "2.0",
		"id":      id,
		"error":   rpcError{Code: code, Message: message},
	})
}

func (s *Server) sendNotification(method string, params any) error {
	return s.send(map[string]any{
		"jsonrpc": "2.0",
		"method":  method,
		"params":  params,
	})
}

func (s *Server) send(msg any) error {
	payload, err := json.Marshal(msg)
	if err != nil {
		return err
	}
	if err := writeMessage(s.out, payload); err != nil {
		return err
	}
	return s.out.Flush()
}

func (s *Server) logf(format string, args ...any) {
	fmt.Fprintf(s.log, "lsp: "+format+"\n", args...)
}
