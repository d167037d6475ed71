package api

import (
	"crypto/rand"
	"encoding/hex"
	"encoding/json"
	"fmt"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/sqlscribe/sqlscribe/internal/auth"
	"github.com/sqlscribe/sqlscribe/internal/executor"
	"github.com/sqlscribe/sqlscribe/internal/pipeline"
)

type askRequest struct {
	Question    string `json:"question"`
	Database    string `json:"database"`
	StageResult bool   `json:"stage_result"`
}

type stagedResultResponse struct {
	Key  string `json:"key"`
	Size int64  `json:"size"`
	ETag string `json:"etag"`
}

type answerResponse struct {
	Question       string                `json:"question"`
	Database       string                `json:"database"`
	SQL            string                `json:"sql"`
	Variant        string                `json:"variant"`
	Classification string                `json:"classification"`
	SchemaLinks    string                `json:"schema_links"`
	Repaired       bool                  `json:"repaired"`
	Columns        []string              `json:"columns,omitempty"`
	Rows           [][]any               `json:"rows,omitempty"`
	ExecError      string                `json:"exec_error,omitempty"`
	DurationMs     int64                 `json:"duration_ms"`
	StagedResult   *stagedResultResponse `json:"staged_result,omitempty"`
}

func handleAsk(deps Dependencies, w http.ResponseWriter, r *http.Request) {
	if deps.Pipeline == nil {
		writeError(r.Context(), w, http.StatusNotImplemented, "PIPELINE_NOT_CONFIGURED", "question pipeline is not configured", false, nil)
		return
	}
	if err := requireRole(r, auth.RoleQueryRunner); err != nil {
		writeError(r.Context(), w, http.StatusForbidden, "FORBIDDEN", err.Error(), false, nil)
		return
	}

	request, ok := decodeAskRequest(deps, w, r)
	if !ok {
		return
	}

	answer, err := deps.Pipeline.Ask(r.Context(), request.Question, request.Database)
	if err != nil {
		writeError(r.Context(), w, http.StatusInternalServerError, "PIPELINE_ERROR", "question pipeline failed", true, map[string]any{"details": err.Error()})
		return
	}

	response := answerFromPipeline(answer)
	if request.StageResult && answer.ExecError == "" && len(answer.Columns) > 0 {
		staged, stageErr := stageAnswer(deps, r, answer)
		if stageErr != nil {
			writeError(r.Context(), w, http.StatusInternalServerError, "STAGING_ERROR", "result staging failed", true, map[string]any{"details": stageErr.Error()})
			return
		}
		response.StagedResult = staged
	}

	writeJSON(w, http.StatusOK, response)
}

func handleTranslate(deps Dependencies, w http.ResponseWriter, r *http.Request) {
	if deps.Pipeline == nil {
		writeError(r.Context(), w, http.StatusNotImplemented, "PIPELINE_NOT_CONFIGURED", "question pipeline is not configured", false, nil)
		return
	}
	if err := requireRole(r, auth.RoleQueryRunner); err != nil {
		writeError(r.Context(), w, http.StatusForbidden, "FORBIDDEN", err.Error(), false, nil)
		return
	}

	request, ok := decodeAskRequest(deps, w, r)
	if !ok {
		return
	}

	answer, err := deps.Pipeline.Translate(r.Context(), request.Question, request.Database)
	if err != nil {
		writeError(r.Context(), w, http.StatusInternalServerError, "PIPELINE_ERROR", "question pipeline failed", true, map[string]any{"details": err.Error()})
		return
	}
	writeJSON(w, http.StatusOK, answerFromPipeline(answer))
}

func decodeAskRequest(deps Dependencies, w http.ResponseWriter, r *http.Request) (askRequest, bool) {
	var request askRequest
	decoder := json.NewDecoder(r.Body)
	decoder.DisallowUnknownFields()
	if err := decoder.Decode(&request); err != nil {
		writeError(r.Context(), w, http.StatusBadRequest, "INVALID_JSON", "invalid request body", false, map[string]any{"details": err.Error()})
		return askRequest{}, false
	}
	request.Question = strings.TrimSpace(request.Question)
	if request.Question == "" {
		writeError(r.Context(), w, http.StatusBadRequest, "QUESTION_REQUIRED", "question is required", false, nil)
		return askRequest{}, false
	}
	if strings.TrimSpace(request.Database) == "" {
		request.Database = deps.DefaultDatabase
	}
	if request.StageResult && !deps.Stager.Enabled() {
		writeError(r.Context(), w, http.StatusBadRequest, "STAGING_NOT_CONFIGURED", "result staging is not configured", false, nil)
		return askRequest{}, false
	}
	return request, true
}

func answerFromPipeline(answer pipeline.Answer) answerResponse {
	return answerResponse{
		Question:       answer.Question,
		Database:       answer.Database,
		SQL:            answer.SQL,
		Variant:        string(answer.Variant),
		Classification: string(answer.Classification.Label),
		SchemaLinks:    answer.SchemaLinks,
		Repaired:       answer.Repaired,
		Columns:        answer.Columns,
		Rows:           answer.Rows,
		ExecError:      answer.ExecError,
		DurationMs:     answer.Duration.Milliseconds(),
	}
}

func stageAnswer(deps Dependencies, r *http.Request, answer pipeline.Answer) (*stagedResultResponse, error) {
	staged, err := deps.Stager.Stage(r.Context(), answer.Database, newAnswerID(), time.Now().UTC(), executor.Result{
		Columns: answer.Columns,
		Rows:    answer.Rows,
	})
	if err != nil {
		return nil, err
	}
	return &stagedResultResponse{Key: staged.Key, Size: staged.Size, ETag: staged.ETag}, nil
}

func requireRole(r *http.Request, role string) error {
	identity, ok := auth.IdentityFromContext(r.Context())
	if !ok {
		return nil
	}
	if identity.HasRole(role) {
		return nil
	}
	return fmt.Errorf("missing required role %q", role)
}

func newAnswerID() string {
	buf := make([]byte, 8)
	if _, err := rand.Read(buf); err != nil {
		return strconv.FormatInt(time.Now().UnixNano(), 16)
	}
	return hex.EncodeToString(buf)
}
