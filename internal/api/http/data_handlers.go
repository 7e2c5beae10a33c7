package http

import (
	"bytes"
	"encoding/json"
	"errors"
	"net/http"
	"time"

	"go.uber.org/zap"

	"github.com/quiz-note/quiznote/internal/auth"
	"github.com/quiz-note/quiznote/internal/quiz"
	"github.com/quiz-note/quiznote/internal/storage"
	syncx "github.com/quiz-note/quiznote/internal/sync"
)

// The export format carries authored content only. Attempt counters and
// created_at stamps stay behind; an import into another account starts
// with clean stats.
type exportedCertificate struct {
	ID          string             `json:"id"`
	Name        string             `json:"name"`
	Description string             `json:"description"`
	Questions   []exportedQuestion `json:"questions"`
}

type exportedQuestion struct {
	ID            string           `json:"id"`
	CertificateID string           `json:"certificate_id"`
	Content       string           `json:"content"`
	Explanation   string           `json:"explanation"`
	Options       []exportedOption `json:"question_options"`
}

type exportedOption struct {
	ID          string `json:"id"`
	QuestionID  string `json:"question_id"`
	Content     string `json:"content"`
	IsCorrect   bool   `json:"is_correct"`
	Explanation string `json:"explanation"`
}

// GET /api/data/export
func ExportDataHandler(store Store, snapshots *storage.SnapshotStore, log *zap.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		sub := auth.SubjectFromContext(r.Context())
		certs, err := store.ListCertificates(r.Context(), sub)
		if err != nil {
			writeStoreError(w, err)
			return
		}

		out := []exportedCertificate{}
		for _, c := range certs {
			ec := exportedCertificate{
				ID:          c.ID,
				Name:        c.Name,
				Description: c.Description,
				Questions:   []exportedQuestion{},
			}
			questions, err := store.ListQuestions(r.Context(), sub, c.ID)
			if err != nil {
				writeStoreError(w, err)
				return
			}
			for _, q := range questions {
				eq := exportedQuestion{
					ID:            q.ID,
					CertificateID: q.CertificateID,
					Content:       q.Content,
					Explanation:   q.Explanation,
					Options:       []exportedOption{},
				}
				for _, o := range q.Options {
					eq.Options = append(eq.Options, exportedOption{
						ID:          o.ID,
						QuestionID:  o.QuestionID,
						Content:     o.Content,
						IsCorrect:   o.IsCorrect,
						Explanation: o.Explanation,
					})
				}
				ec.Questions = append(ec.Questions, eq)
			}
			out = append(out, ec)
		}

		body, err := json.MarshalIndent(out, "", "  ")
		if err != nil {
			writeError(w, http.StatusInternalServerError, "request failed")
			return
		}
		name := "export-" + time.Now().UTC().Format("20060102-150405") + ".json"
		if _, err := snapshots.Save(name, bytes.NewReader(body)); err != nil {
			log.Warn("export snapshot not saved", zap.String("name", name), zap.Error(err))
		}

		w.Header().Set("Content-Type", "application/json")
		w.Header().Set("Content-Disposition", `attachment; filename="`+name+`"`)
		w.WriteHeader(http.StatusOK)
		_, _ = w.Write(body)
	}
}

// POST /api/data/import
//
// Every imported record gets a fresh id so the same file can be imported
// twice, or into another account, without colliding. Questions failing the
// authoring invariants are skipped and counted rather than aborting the
// whole import.
func ImportDataHandler(store Store, log *zap.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		sub := auth.SubjectFromContext(r.Context())
		var payload []exportedCertificate
		if err := decodeJSON(r, &payload); err != nil {
			writeError(w, http.StatusBadRequest, "bad json")
			return
		}

		var certCount, questionCount, skipped int
		for _, ec := range payload {
			if ec.Name == "" {
				skipped += len(ec.Questions)
				continue
			}
			cert := quiz.NewCertificate(ec.Name, ec.Description)
			if err := store.CreateCertificate(r.Context(), sub, cert); err != nil {
				writeStoreError(w, err)
				return
			}
			certCount++

			for _, eq := range ec.Questions {
				q := quiz.NewQuestion(cert.ID, eq.Content)
				q.Explanation = eq.Explanation
				for i, eo := range eq.Options {
					opt := quiz.NewOption(eo.Content, eo.IsCorrect)
					opt.Explanation = eo.Explanation
					opt.QuestionID = q.ID
					opt.DisplayOrder = i
					q.Options = append(q.Options, opt)
				}
				if err := quiz.ValidateQuestion(q); err != nil {
					log.Warn("skipping invalid question on import",
						zap.String("certificate", ec.Name), zap.Error(err))
					skipped++
					continue
				}
				if err := store.CreateQuestion(r.Context(), sub, q); err != nil {
					writeStoreError(w, err)
					return
				}
				questionCount++
			}
		}

		writeJSON(w, http.StatusOK, map[string]int{
			"certificates": certCount,
			"questions":    questionCount,
			"skipped":      skipped,
		})
	}
}

// GET /api/data/snapshots
func ListSnapshotsHandler(snapshots *storage.SnapshotStore) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		infos, err := snapshots.List()
		if err != nil {
			writeError(w, http.StatusInternalServerError, "request failed")
			return
		}
		writeJSON(w, http.StatusOK, infos)
	}
}

// GET /api/data/sync
func SyncStatusHandler(events EventSource) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		sub := auth.SubjectFromContext(r.Context())
		latest, err := events.Latest(r.Context(), sub)
		if errors.Is(err, syncx.ErrEmptyLog) {
			writeJSON(w, http.StatusOK, map[string]any{"offset": 0})
			return
		}
		if err != nil {
			writeError(w, http.StatusInternalServerError, "request failed")
			return
		}
		writeJSON(w, http.StatusOK, map[string]any{
			"offset":     latest.Offset,
			"site_id":    latest.SiteID,
			"type":       latest.Type,
			"created_at": latest.CreatedAt,
		})
	}
}
