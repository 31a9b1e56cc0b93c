package api

import (
	"encoding/json"
	"errors"
	"net/http"
	"strconv"

	"github.com/lueurxax/generation-inspector/internal/inspector"
	"github.com/lueurxax/generation-inspector/internal/llm"
)

const headerContentType = "Content-Type"

type errorResponse struct {
	Error string `json:"error"`
}

func (s *Server) writeJSON(w http.ResponseWriter, status int, payload any) {
	w.Header().Set(headerContentType, "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(payload); err != nil {
		s.logger.Error().Err(err).Msg("failed to encode response")
	}
}

func (s *Server) writeError(w http.ResponseWriter, status int, err error) {
	s.writeJSON(w, status, errorResponse{Error: err.Error()})
}

func (s *Server) decode(w http.ResponseWriter, r *http.Request, into any) bool {
	if err := json.NewDecoder(r.Body).Decode(into); err != nil {
		s.writeError(w, http.StatusBadRequest, err)
		return false
	}
	return true
}

func (s *Server) handleModels(w http.ResponseWriter, _ *http.Request) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.writeJSON(w, http.StatusOK, map[string]any{
		"models":     s.session.Models(),
		"base_model": s.session.BaseModel(),
	})
}

func (s *Server) handleBaseModel(w http.ResponseWriter, r *http.Request) {
	var req struct {
		Model string `json:"model"`
	}
	if !s.decode(w, r, &req) {
		return
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	if err := s.session.SelectBaseModel(r.Context(), req.Model); err != nil {
		s.writeError(w, http.StatusBadRequest, err)
		return
	}
	s.writeJSON(w, http.StatusOK, map[string]any{
		"base_model": s.session.BaseModel(),
		"questions":  len(s.session.Table()),
	})
}

func (s *Server) handleReload(w http.ResponseWriter, r *http.Request) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if err := s.session.Reload(r.Context()); err != nil {
		s.writeError(w, http.StatusInternalServerError, err)
		return
	}
	s.writeJSON(w, http.StatusOK, map[string]any{"questions": len(s.session.Table())})
}

func (s *Server) handleTable(w http.ResponseWriter, r *http.Request) {
	s.mu.Lock()
	defer s.mu.Unlock()

	table := s.session.Table()
	if q := r.URL.Query().Get("question"); q != "" {
		index, err := strconv.Atoi(q)
		if err != nil || index < 0 || index >= len(table) {
			s.writeError(w, http.StatusBadRequest, errors.New("question index out of range"))
			return
		}
		s.writeJSON(w, http.StatusOK, map[string]any{"question": index, "entry": table[index]})
		return
	}
	s.writeJSON(w, http.StatusOK, map[string]any{
		"questions":  len(table),
		"table":      table,
		"filter_log": s.session.FilterLog(),
	})
}

func (s *Server) handleSummary(w http.ResponseWriter, _ *http.Request) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.writeJSON(w, http.StatusOK, map[string]any{
		"general_stats": s.session.GeneralStats(),
		"row_keys":      s.session.DetailedRowKeys(),
		"excluded_rows": s.session.ExcludedRows(),
		"editable_rows": s.session.EditableRows(),
		"compared_rows": s.session.ComparedRows(),
		"labels":        s.session.Labels(),
	})
}

func (s *Server) handleFilter(w http.ResponseWriter, r *http.Request) {
	var req struct {
		Expression          string `json:"expression"`
		Mode                string `json:"mode"`
		ApplyOnFilteredData bool   `json:"apply_on_filtered_data"`
	}
	if !s.decode(w, r, &req) {
		return
	}
	mode := inspector.FilterMode(req.Mode)
	if mode == "" {
		mode = inspector.FilterFiles
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	if err := s.pipeline.Filter(r.Context(), s.session, mode, req.Expression, req.ApplyOnFilteredData); err != nil {
		s.writeError(w, http.StatusBadRequest, err)
		return
	}
	s.writeJSON(w, http.StatusOK, map[string]any{
		"questions":  len(s.session.Table()),
		"filter_log": s.session.FilterLog(),
	})
}

func (s *Server) handleSort(w http.ResponseWriter, r *http.Request) {
	var req struct {
		Expression string `json:"expression"`
	}
	if !s.decode(w, r, &req) {
		return
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	if err := s.pipeline.Sort(s.session, req.Expression); err != nil {
		s.writeError(w, http.StatusBadRequest, err)
		return
	}
	s.writeJSON(w, http.StatusOK, map[string]any{"questions": len(s.session.Table())})
}

func (s *Server) handleUpdate(w http.ResponseWriter, r *http.Request) {
	var req struct {
		Expression string `json:"expression"`
	}
	if !s.decode(w, r, &req) {
		return
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	if err := s.pipeline.Update(s.session, req.Expression); err != nil {
		s.writeError(w, http.StatusBadRequest, err)
		return
	}
	s.writeJSON(w, http.StatusOK, map[string]any{"questions": len(s.session.Table())})
}

func (s *Server) handleStatsList(w http.ResponseWriter, _ *http.Request) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.writeJSON(w, http.StatusOK, map[string]any{
		"inline":  s.session.StatSources(inspector.ScopeInline),
		"general": s.session.StatSources(inspector.ScopeGeneral),
	})
}

func (s *Server) handleStatsAdd(w http.ResponseWriter, r *http.Request) {
	var req struct {
		Scope  string `json:"scope"`
		Name   string `json:"name"`
		Source string `json:"source"`
	}
	if !s.decode(w, r, &req) {
		return
	}
	scope := inspector.StatScope(req.Scope)
	if scope == "" {
		scope = inspector.ScopeInline
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	if err := s.session.AddStat(scope, req.Name, req.Source); err != nil {
		s.writeError(w, http.StatusBadRequest, err)
		return
	}
	s.writeJSON(w, http.StatusOK, map[string]any{"name": req.Name})
}

func (s *Server) handleStatsDelete(w http.ResponseWriter, r *http.Request) {
	var req struct {
		Scope string `json:"scope"`
		Name  string `json:"name"`
	}
	if !s.decode(w, r, &req) {
		return
	}
	scope := inspector.StatScope(req.Scope)
	if scope == "" {
		scope = inspector.ScopeInline
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	s.session.DeleteStat(scope, req.Name)
	s.writeJSON(w, http.StatusOK, map[string]any{"name": req.Name})
}

func (s *Server) handleLabelsList(w http.ResponseWriter, _ *http.Request) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.writeJSON(w, http.StatusOK, map[string]any{"labels": s.session.Labels()})
}

func (s *Server) handleLabelsAdd(w http.ResponseWriter, r *http.Request) {
	var req struct {
		Label string `json:"label"`
	}
	if !s.decode(w, r, &req) {
		return
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	added := s.session.AddLabel(req.Label)
	s.writeJSON(w, http.StatusOK, map[string]any{"added": added, "labels": s.session.Labels()})
}

func (s *Server) handleLabelsApply(w http.ResponseWriter, r *http.Request) {
	req := struct {
		QuestionIndex *int   `json:"question_index"`
		Model         string `json:"model"`
		FileName      string `json:"file_name"`
		Label         string `json:"label"`
		Remove        bool   `json:"remove"`
	}{}
	if !s.decode(w, r, &req) {
		return
	}
	questionIndex := -1
	if req.QuestionIndex != nil {
		questionIndex = *req.QuestionIndex
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	changed, err := s.session.ChangeLabel(questionIndex, req.Model, req.FileName, req.Label, req.Remove)
	if err != nil {
		s.writeError(w, http.StatusBadRequest, err)
		return
	}
	s.writeJSON(w, http.StatusOK, map[string]any{"changed": changed})
}

func (s *Server) handleRows(w http.ResponseWriter, r *http.Request) {
	var req struct {
		Key     string `json:"key"`
		Set     string `json:"set"`
		Enabled bool   `json:"enabled"`
	}
	if !s.decode(w, r, &req) {
		return
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	switch req.Set {
	case "excluded":
		s.session.SetRowExcluded(req.Key, req.Enabled)
	case "editable":
		s.session.SetRowEditable(req.Key, req.Enabled)
	case "compared":
		s.session.SetRowCompared(req.Key, req.Enabled)
	default:
		s.writeError(w, http.StatusBadRequest, errors.New("set must be excluded, editable or compared"))
		return
	}
	s.writeJSON(w, http.StatusOK, map[string]any{"key": req.Key, "set": req.Set, "enabled": req.Enabled})
}

func (s *Server) handleExport(w http.ResponseWriter, r *http.Request) {
	var req struct {
		Dir string `json:"dir"`
	}
	if !s.decode(w, r, &req) {
		return
	}
	if req.Dir == "" {
		s.writeError(w, http.StatusBadRequest, errors.New("dir is required"))
		return
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	if err := inspector.ExportDataset(s.session, req.Dir); err != nil {
		s.writeError(w, http.StatusInternalServerError, err)
		return
	}
	s.writeJSON(w, http.StatusOK, map[string]any{"dir": req.Dir})
}

func (s *Server) handleParse(w http.ResponseWriter, r *http.Request) {
	var req struct {
		Text string `json:"text"`
	}
	if !s.decode(w, r, &req) {
		return
	}
	fragments := inspector.ParseAnswer(req.Text, inspector.Separators{
		CodeBegin:   s.cfg.CodeBegin,
		CodeEnd:     s.cfg.CodeEnd,
		OutputBegin: s.cfg.CodeOutputBegin,
		OutputEnd:   s.cfg.CodeOutputEnd,
	})
	s.writeJSON(w, http.StatusOK, map[string]any{"fragments": fragments})
}

func (s *Server) handleGenerate(w http.ResponseWriter, r *http.Request) {
	var req struct {
		Prompts     []string   `json:"prompts"`
		StopPhrases []string   `json:"stop_phrases"`
		Params      llm.Params `json:"params"`
	}
	if !s.decode(w, r, &req) {
		return
	}
	if len(req.Prompts) == 0 {
		s.writeError(w, http.StatusBadRequest, errors.New("prompts are required"))
		return
	}
	stopPhrases := req.StopPhrases
	if stopPhrases == nil {
		stopPhrases = s.cfg.StopPhrases
	}

	outputs, err := s.backend.Generate(r.Context(), req.Prompts, stopPhrases, req.Params)
	if err != nil {
		status := http.StatusInternalServerError
		if errors.Is(err, llm.ErrBackendUnavailable) {
			status = http.StatusBadGateway
		}
		s.writeError(w, status, err)
		return
	}
	s.writeJSON(w, http.StatusOK, map[string]any{"outputs": outputs})
}
