package main

import (
	"encoding/json"
	"io"
	"net/http"

	"github.com/BearBump/DispatchBox/internal/controls"
	"github.com/BearBump/DispatchBox/internal/integrations/dispatch"
	"github.com/BearBump/DispatchBox/internal/markup"
	"github.com/BearBump/DispatchBox/internal/models"
	"github.com/BearBump/DispatchBox/internal/services/widget"
	"github.com/BearBump/DispatchBox/internal/validation"
	"github.com/PuerkitoBio/goquery"
	"github.com/go-chi/chi/v5"
	"github.com/pkg/errors"
)

const maxMarkupSize = 1 << 20

type handlers struct {
	ctl *widget.Controller
}

type controlResponse struct {
	State models.ControlState `json:"state"`
	View  controls.View       `json:"view"`
}

type clickResponse struct {
	controlResponse
	OrderID  string   `json:"order_id,omitempty"`
	Error    string   `json:"error,omitempty"`
	Codes    []string `json:"codes,omitempty"`
	Problems []string `json:"problems,omitempty"`
	Ignored  bool     `json:"ignored,omitempty"`
	Reset    bool     `json:"reset,omitempty"`
	HTML     string   `json:"html"`
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}

func writeError(w http.ResponseWriter, status int, err error) {
	writeJSON(w, status, map[string]string{"error": err.Error()})
}

func readPage(r *http.Request) (*markup.Page, error) {
	body, err := io.ReadAll(io.LimitReader(r.Body, maxMarkupSize))
	if err != nil {
		return nil, errors.Wrap(err, "read body")
	}
	return markup.ParseString(string(body))
}

func kindParam(r *http.Request) models.ControlKind {
	if r.URL.Query().Get("kind") == string(models.ControlCombo) {
		return models.ControlCombo
	}
	return models.ControlButton
}

func controlView(st models.ControlState) controlResponse {
	return controlResponse{State: st, View: controls.ForKind(st.Kind).RenderState(st)}
}

// click принимает разметку контрола (кнопка или блок комбо). В ответе итог клика
// и та же разметка с применённым состоянием.
func (h *handlers) click(w http.ResponseWriter, r *http.Request) {
	id := chi.URLParam(r, "id")
	page, err := readPage(r)
	if err != nil {
		writeError(w, http.StatusBadRequest, err)
		return
	}
	target, err := page.Target(id)
	if err != nil {
		writeError(w, http.StatusNotFound, err)
		return
	}

	// у комбо id состояния один, по какому бы id из блока ни пришёл клик
	if target.ID != "" {
		id = target.ID
	}
	out, err := h.ctl.Click(r.Context(), widget.Control{ID: id, Kind: target.Kind, Items: target.Items})
	if errors.Is(err, widget.ErrNoAuth) {
		writeError(w, http.StatusPreconditionFailed, err)
		return
	}
	if err != nil {
		writeError(w, http.StatusInternalServerError, err)
		return
	}

	resp := clickResponse{
		controlResponse: controlView(out.State),
		OrderID:         out.OrderID,
		Ignored:         out.Ignored,
		Reset:           out.Reset,
	}
	if out.Err != nil {
		resp.Error = out.Err.Error()
		var apiErr *dispatch.APIError
		if errors.As(out.Err, &apiErr) {
			resp.Codes = apiErr.Codes
		}
		var vErr *validation.Error
		if errors.As(out.Err, &vErr) {
			resp.Problems = vErr.Problems
		}
	}

	controls.Apply(target.Sel, resp.View)
	if target.Kind == models.ControlCombo && out.State.State == models.StateSent && !out.Ignored {
		controls.ConsumeCheckboxes(selections(target.Items))
	}
	if resp.HTML, err = page.HTML(); err != nil {
		writeError(w, http.StatusInternalServerError, err)
		return
	}
	writeJSON(w, http.StatusOK, resp)
}

func selections(items []markup.Element) []*goquery.Selection {
	out := make([]*goquery.Selection, 0, len(items))
	for _, it := range items {
		if s, ok := it.(*goquery.Selection); ok {
			out = append(out, s)
		}
	}
	return out
}

func (h *handlers) selection(w http.ResponseWriter, r *http.Request) {
	st, err := h.ctl.SelectionChanged(r.Context(), chi.URLParam(r, "id"))
	if err != nil {
		writeError(w, http.StatusInternalServerError, err)
		return
	}
	writeJSON(w, http.StatusOK, controlView(st))
}

func (h *handlers) getControl(w http.ResponseWriter, r *http.Request) {
	st, err := h.ctl.State(r.Context(), chi.URLParam(r, "id"), kindParam(r))
	if err != nil {
		writeError(w, http.StatusInternalServerError, err)
		return
	}
	writeJSON(w, http.StatusOK, controlView(st))
}

func (h *handlers) resetControl(w http.ResponseWriter, r *http.Request) {
	st, err := h.ctl.Reset(r.Context(), chi.URLParam(r, "id"), kindParam(r))
	if err != nil {
		writeError(w, http.StatusInternalServerError, err)
		return
	}
	writeJSON(w, http.StatusOK, controlView(st))
}

// render применяет сохранённые состояния ко всем контролам страницы.
func (h *handlers) render(w http.ResponseWriter, r *http.Request) {
	page, err := readPage(r)
	if err != nil {
		writeError(w, http.StatusBadRequest, err)
		return
	}

	for _, btn := range page.Buttons() {
		id, _ := btn.Attr("id")
		if id == "" {
			continue
		}
		st, err := h.ctl.State(r.Context(), id, models.ControlButton)
		if err != nil {
			writeError(w, http.StatusInternalServerError, err)
			return
		}
		controls.Apply(btn, controls.Button.RenderState(st))
	}
	for _, combo := range page.Combos() {
		if combo.ID == "" || combo.Sel.Length() == 0 {
			continue
		}
		st, err := h.ctl.State(r.Context(), combo.ID, models.ControlCombo)
		if err != nil {
			writeError(w, http.StatusInternalServerError, err)
			return
		}
		controls.Apply(combo.Sel, controls.ComboSubmit.RenderState(st))
	}

	html, err := page.HTML()
	if err != nil {
		writeError(w, http.StatusInternalServerError, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]string{"html": html})
}

func (h *handlers) settings(w http.ResponseWriter, r *http.Request) {
	var req struct {
		Debug    *bool   `json:"debug"`
		ClientID *string `json:"client_id"`
		Token    *string `json:"token"`
	}
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, errors.Wrap(err, "decode settings"))
		return
	}
	if (req.ClientID == nil) != (req.Token == nil) {
		writeError(w, http.StatusBadRequest, errors.New("client_id and token are set together"))
		return
	}
	if req.Debug != nil {
		h.ctl.SetDebug(*req.Debug)
	}
	if req.ClientID != nil {
		h.ctl.SetAuth(models.AuthParams{ClientID: *req.ClientID, Token: *req.Token})
	}
	writeJSON(w, http.StatusOK, map[string]bool{
		"debug":    h.ctl.Debug(),
		"auth_set": h.ctl.Auth().Valid(),
	})
}

func (h *handlers) stats(w http.ResponseWriter, _ *http.Request) {
	writeJSON(w, http.StatusOK, h.ctl.Stats())
}
