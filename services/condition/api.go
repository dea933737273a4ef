package condition

import (
	"encoding/json"
	"io"
	"net/http"
	"path"

	jsonpatch "github.com/evanphx/json-patch"
	"github.com/influxdata/httprouter"
	"github.com/pkg/errors"
	"github.com/streamwatch/streamwatch/auth"
	client "github.com/streamwatch/streamwatch/client/v1"
	"github.com/streamwatch/streamwatch/services/httpd"
)

const (
	conditionsPath         = "/streams/:streamid/alerts/conditions"
	conditionsPathAnchored = "/streams/:streamid/alerts/conditions/:conditionid"
)

func (s *Service) apiRoutes() []httpd.Route {
	return []httpd.Route{
		{
			Method:      "POST",
			Pattern:     conditionsPath,
			HandlerFunc: s.handleCreateCondition,
		},
		{
			Method:      "GET",
			Pattern:     conditionsPath,
			HandlerFunc: s.handleListConditions,
		},
		{
			Method:      "GET",
			Pattern:     conditionsPathAnchored,
			HandlerFunc: s.handleGetCondition,
		},
		{
			Method:      "PUT",
			Pattern:     conditionsPathAnchored,
			HandlerFunc: s.handleUpdateCondition,
		},
		{
			Method:      "PATCH",
			Pattern:     conditionsPathAnchored,
			HandlerFunc: s.handlePatchCondition,
		},
		{
			Method:      "DELETE",
			Pattern:     conditionsPathAnchored,
			HandlerFunc: s.handleDeleteCondition,
		},
	}
}

// httpStatus maps the error taxonomy of the manager onto status codes.
func httpStatus(err error) int {
	switch errors.Cause(err) {
	case ErrStreamNotFound, ErrConditionNotFound:
		return http.StatusNotFound
	case ErrUnknownConditionType, ErrInvalidParameters, ErrTypeMismatch:
		return http.StatusBadRequest
	case ErrPermissionDenied:
		return http.StatusForbidden
	case ErrConflictingUpdate:
		return http.StatusConflict
	case ErrStorageUnavailable:
		return http.StatusServiceUnavailable
	default:
		return http.StatusInternalServerError
	}
}

func (s *Service) httpError(w http.ResponseWriter, err error) {
	httpd.HttpError(w, err.Error(), true, httpStatus(err))
}

func conditionLink(streamID, conditionID string) string {
	return path.Join(httpd.BasePath, "streams", streamID, "alerts", "conditions", conditionID)
}

func (s *Service) convert(sum Summary) client.Condition {
	return client.Condition{
		ID:            sum.ID,
		StreamID:      sum.StreamID,
		Type:          sum.Type,
		Title:         sum.Title,
		Parameters:    sum.Parameters,
		CreatedAt:     sum.CreatedAt,
		CreatorUserID: sum.CreatorUserID,
		InGracePeriod: sum.InGracePeriod,
	}
}

func (s *Service) handleCreateCondition(w http.ResponseWriter, r *http.Request, user auth.User) {
	streamID := httprouter.ParamsFromContext(r.Context()).ByName("streamid")

	var opts client.CreateConditionOptions
	if err := json.NewDecoder(r.Body).Decode(&opts); err != nil {
		httpd.HttpError(w, "invalid JSON: "+err.Error(), true, http.StatusBadRequest)
		return
	}

	sum, err := s.Create(user, streamID, opts.Type, opts.Title, opts.Parameters)
	if err != nil {
		s.httpError(w, err)
		return
	}

	w.Header().Set("Location", conditionLink(streamID, sum.ID))
	w.WriteHeader(http.StatusCreated)
	_, _ = w.Write(httpd.MarshalJSON(client.CreateConditionResponse{AlertConditionID: sum.ID}, true))
}

func (s *Service) handleListConditions(w http.ResponseWriter, r *http.Request, user auth.User) {
	streamID := httprouter.ParamsFromContext(r.Context()).ByName("streamid")

	summaries, err := s.List(user, streamID)
	if err != nil {
		s.httpError(w, err)
		return
	}

	res := client.Conditions{
		Total:      len(summaries),
		Conditions: make([]client.Condition, len(summaries)),
	}
	for i, sum := range summaries {
		res.Conditions[i] = s.convert(sum)
	}
	_, _ = w.Write(httpd.MarshalJSON(res, true))
}

func (s *Service) handleGetCondition(w http.ResponseWriter, r *http.Request, user auth.User) {
	params := httprouter.ParamsFromContext(r.Context())
	streamID := params.ByName("streamid")
	conditionID := params.ByName("conditionid")

	sum, err := s.Get(user, streamID, conditionID)
	if err != nil {
		s.httpError(w, err)
		return
	}
	_, _ = w.Write(httpd.MarshalJSON(s.convert(sum), true))
}

func (s *Service) handleUpdateCondition(w http.ResponseWriter, r *http.Request, user auth.User) {
	params := httprouter.ParamsFromContext(r.Context())
	streamID := params.ByName("streamid")
	conditionID := params.ByName("conditionid")

	var opts client.UpdateConditionOptions
	if err := json.NewDecoder(r.Body).Decode(&opts); err != nil {
		httpd.HttpError(w, "invalid JSON: "+err.Error(), true, http.StatusBadRequest)
		return
	}

	if _, err := s.Update(user, streamID, conditionID, opts.Type, opts.Title, opts.Parameters); err != nil {
		s.httpError(w, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

// handlePatchCondition applies an RFC 6902 JSON patch to the update
// document of a condition, then runs the result through the regular
// update path.
func (s *Service) handlePatchCondition(w http.ResponseWriter, r *http.Request, user auth.User) {
	params := httprouter.ParamsFromContext(r.Context())
	streamID := params.ByName("streamid")
	conditionID := params.ByName("conditionid")

	sum, err := s.Get(user, streamID, conditionID)
	if err != nil {
		s.httpError(w, err)
		return
	}
	doc, err := json.Marshal(client.UpdateConditionOptions{
		Type:       sum.Type,
		Title:      sum.Title,
		Parameters: sum.Parameters,
	})
	if err != nil {
		s.httpError(w, err)
		return
	}

	body, err := io.ReadAll(r.Body)
	if err != nil {
		httpd.HttpError(w, err.Error(), true, http.StatusBadRequest)
		return
	}
	patch, err := jsonpatch.DecodePatch(body)
	if err != nil {
		httpd.HttpError(w, "invalid JSON patch: "+err.Error(), true, http.StatusBadRequest)
		return
	}
	patched, err := patch.Apply(doc)
	if err != nil {
		httpd.HttpError(w, "failed to apply JSON patch: "+err.Error(), true, http.StatusBadRequest)
		return
	}
	var opts client.UpdateConditionOptions
	if err := json.Unmarshal(patched, &opts); err != nil {
		httpd.HttpError(w, "patched document is not a condition update: "+err.Error(), true, http.StatusBadRequest)
		return
	}

	if _, err := s.Update(user, streamID, conditionID, opts.Type, opts.Title, opts.Parameters); err != nil {
		s.httpError(w, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

func (s *Service) handleDeleteCondition(w http.ResponseWriter, r *http.Request, user auth.User) {
	params := httprouter.ParamsFromContext(r.Context())
	streamID := params.ByName("streamid")
	conditionID := params.ByName("conditionid")

	if err := s.Delete(user, streamID, conditionID); err != nil {
		s.httpError(w, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}
