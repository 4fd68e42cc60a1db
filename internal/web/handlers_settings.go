package web

import (
	"fmt"
	"net/http"
	"strconv"

	"github.com/JonMunkholm/stockroom/internal/core"
	"github.com/JonMunkholm/stockroom/internal/logging"
	mw "github.com/JonMunkholm/stockroom/internal/web/middleware"
	"github.com/JonMunkholm/stockroom/internal/web/templates"
	"github.com/go-chi/chi/v5"
)

// adminTables lists settings tables only admins may change.
var adminTables = map[string]bool{"usuarios": true}

// adminForUsers guards mutations of admin-only settings tables.
func (s *Server) adminForUsers(next http.Handler) http.Handler {
	guarded := mw.RequireAdmin(next)
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if adminTables[chi.URLParam(r, "table")] {
			guarded.ServeHTTP(w, r)
			return
		}
		next.ServeHTTP(w, r)
	})
}

func canWrite(r *http.Request, table string) bool {
	return !adminTables[table] || actor(r).IsAdmin()
}

func (s *Server) handleSettingsIndex(w http.ResponseWriter, r *http.Request) {
	tables := core.All()
	if wantsJSON(r) {
		out := make([]map[string]string, len(tables))
		for i, t := range tables {
			out[i] = map[string]string{"key": t.Key, "label": t.Label}
		}
		writeJSON(w, out)
		return
	}
	s.render(w, r, templates.SettingsIndexPage(s.page(r, "Configuración", "settings"), tables))
}

// settingsPage renders a table listing, with edit set to the row being
// edited or nil for the create form.
func (s *Server) settingsPage(w http.ResponseWriter, r *http.Request, def core.TableDefinition, edit core.Item, editID int) {
	data, err := s.service.ListAll(r.Context(), def.Key)
	if err != nil {
		s.fail(w, r, err)
		return
	}
	d := templates.SettingsData{
		Def:      def,
		Data:     data,
		Options:  make(map[string][]core.Option),
		Edit:     edit,
		EditID:   editID,
		CanWrite: canWrite(r, def.Key),
	}
	for _, f := range def.Fields {
		if f.Kind != core.FieldRelation {
			continue
		}
		if d.Options[f.Column], err = s.service.RelatedOptions(r.Context(), f.Column); err != nil {
			s.fail(w, r, err)
			return
		}
	}
	s.render(w, r, templates.SettingsTablePage(s.page(r, def.Label, "settings"), d))
}

func (s *Server) handleSettingsTable(w http.ResponseWriter, r *http.Request) {
	def, ok := core.Get(chi.URLParam(r, "table"))
	if !ok {
		s.fail(w, r, fmt.Errorf("%w: %s", core.ErrUnknownTable, chi.URLParam(r, "table")))
		return
	}
	if wantsJSON(r) {
		data, err := s.service.ListAll(r.Context(), def.Key)
		if err != nil {
			s.fail(w, r, err)
			return
		}
		writeJSON(w, data)
		return
	}
	s.settingsPage(w, r, def, nil, 0)
}

func (s *Server) handleSettingsActive(w http.ResponseWriter, r *http.Request) {
	data, err := s.service.ListActive(r.Context(), chi.URLParam(r, "table"))
	if err != nil {
		s.fail(w, r, err)
		return
	}
	writeJSON(w, data)
}

func (s *Server) handleSettingsItem(w http.ResponseWriter, r *http.Request) {
	table := chi.URLParam(r, "table")
	id, err := pathID(r, "id")
	if err != nil {
		s.fail(w, r, err)
		return
	}
	item, err := s.service.GetItem(r.Context(), table, id)
	if err != nil {
		s.fail(w, r, err)
		return
	}
	if wantsJSON(r) {
		writeJSON(w, item)
		return
	}
	def, _ := core.Get(table)
	s.settingsPage(w, r, def, item, id)
}

func (s *Server) handleRelatedOptions(w http.ResponseWriter, r *http.Request) {
	opts, err := s.service.RelatedOptions(r.Context(), chi.URLParam(r, "related"))
	if err != nil {
		s.fail(w, r, err)
		return
	}
	writeJSON(w, opts)
}

// settingsValues reads the submitted row. JSON values of any type are
// accepted and converted by the field definitions.
func settingsValues(r *http.Request) (map[string]string, error) {
	if isJSONBody(r) {
		var raw map[string]interface{}
		if err := bind(r, &raw, nil); err != nil {
			return nil, err
		}
		out := make(map[string]string, len(raw))
		for k, v := range raw {
			out[k] = jsonFieldString(v)
		}
		return out, nil
	}
	f, err := newFormReader(r)
	if err != nil {
		return nil, err
	}
	return f.fields(), nil
}

// jsonFieldString renders a decoded JSON value the way a form would have
// submitted it. Numbers never use exponent notation.
func jsonFieldString(v interface{}) string {
	switch x := v.(type) {
	case nil:
		return ""
	case string:
		return x
	case float64:
		return strconv.FormatFloat(x, 'f', -1, 64)
	case bool:
		return strconv.FormatBool(x)
	}
	return fmt.Sprint(v)
}

// handleSettingsSave inserts (no id in the path) or updates a row.
func (s *Server) handleSettingsSave(w http.ResponseWriter, r *http.Request) {
	table := chi.URLParam(r, "table")
	values, err := settingsValues(r)
	if err != nil {
		s.fail(w, r, err)
		return
	}

	if chi.URLParam(r, "id") == "" {
		id, err := s.service.Insert(r.Context(), table, values)
		if err != nil {
			s.fail(w, r, err)
			return
		}
		done(w, r, http.StatusCreated, map[string]int{"id": id}, withFlash("/settings/"+table, "created"))
		return
	}

	id, err := pathID(r, "id")
	if err != nil {
		s.fail(w, r, err)
		return
	}
	if err := s.service.Update(r.Context(), table, id, values); err != nil {
		s.fail(w, r, err)
		return
	}
	done(w, r, http.StatusOK, map[string]int{"id": id}, withFlash("/settings/"+table, "saved"))
}

func (s *Server) handleSettingsActivate(w http.ResponseWriter, r *http.Request) {
	table := chi.URLParam(r, "table")
	id, err := pathID(r, "id")
	if err != nil {
		s.fail(w, r, err)
		return
	}
	ok, err := s.service.Activate(r.Context(), table, id)
	if err != nil {
		s.fail(w, r, err)
		return
	}
	if !ok {
		s.fail(w, r, fmt.Errorf("activate %s %d: %w", table, id, core.ErrSoftDeleteUnsupported))
		return
	}
	done(w, r, http.StatusNoContent, nil, withFlash("/settings/"+table, "activated"))
}

func (s *Server) handleSettingsDeactivate(w http.ResponseWriter, r *http.Request) {
	table := chi.URLParam(r, "table")
	id, err := pathID(r, "id")
	if err != nil {
		s.fail(w, r, err)
		return
	}
	if err := s.service.SoftDelete(r.Context(), table, id); err != nil {
		s.fail(w, r, err)
		return
	}
	done(w, r, http.StatusNoContent, nil, withFlash("/settings/"+table, "deactivated"))
}

func (s *Server) handleSettingsDelete(w http.ResponseWriter, r *http.Request) {
	table := chi.URLParam(r, "table")
	id, err := pathID(r, "id")
	if err != nil {
		s.fail(w, r, err)
		return
	}
	outcome, err := s.service.Delete(r.Context(), table, id)
	if err != nil {
		s.fail(w, r, err)
		return
	}
	if outcome == core.OutcomeDeactivated {
		logging.WithFields(r.Context(), "table", table, "id", id).Info("row in use, deactivated instead of deleted")
	}
	done(w, r, http.StatusOK, map[string]core.DeleteOutcome{"outcome": outcome}, withFlash("/settings/"+table, string(outcome)))
}

func (s *Server) handleAuditLog(w http.ResponseWriter, r *http.Request) {
	q := r.URL.Query()
	f := core.AuditLogFilter{
		TableKey: q.Get("table"),
		Action:   core.AuditAction(q.Get("action")),
		Limit:    queryInt(r, "limit"),
		Offset:   queryInt(r, "offset"),
	}
	if f.TableKey == "Todas" {
		f.TableKey = ""
	}
	if f.Action == "Todas" {
		f.Action = ""
	}
	if f.Limit <= 0 || f.Limit > 500 {
		f.Limit = 100
	}

	entries, err := s.service.ListAudit(r.Context(), f)
	if err != nil {
		s.fail(w, r, err)
		return
	}
	if wantsJSON(r) {
		writeJSON(w, entries)
		return
	}
	s.render(w, r, templates.AuditLogPage(s.page(r, "Auditoría", "audit"), entries, f, core.All()))
}
