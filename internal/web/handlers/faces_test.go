package handlers

import (
	"errors"
	"fmt"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/kozaktomas/face-registry/internal/faceapi"
	"github.com/kozaktomas/face-registry/internal/registry"
)

func TestFacesHandler_Register_Success(t *testing.T) {
	reg := &mockRegistry{}
	h := newTestHandler(reg)

	req := jsonRequest(t, http.MethodPost, "/register_face", RegisterRequest{Name: "alice", Image: "abc", Model: "verification"})
	recorder := httptest.NewRecorder()
	h.Register(recorder, req)

	assertStatusCode(t, recorder, http.StatusOK)
	assertContentType(t, recorder, "application/json")

	var result MessageResponse
	parseJSONResponse(t, recorder, &result)
	if !result.Success || result.Message != "Face registered successfully for alice" {
		t.Errorf("unexpected response %+v", result)
	}
	if reg.lastRegister.Model != "verification" || reg.lastRegister.Image != "abc" {
		t.Errorf("request not forwarded: %+v", reg.lastRegister)
	}
}

func TestFacesHandler_Register_Errors(t *testing.T) {
	tests := []struct {
		name           string
		err            error
		expectedStatus int
		expectedMsg    string
	}{
		{"missing fields", registry.ErrNameAndImageRequired, http.StatusBadRequest, "Name and image are required"},
		{"unknown model", fmt.Errorf("%w %q", registry.ErrUnknownModel, "x"), http.StatusBadRequest, "Unknown model. Use 'embedding' or 'verification'."},
		{"invalid image", fmt.Errorf("%w: bad data", registry.ErrInvalidImage), http.StatusBadRequest, "Invalid image format"},
		{"duplicate", registry.ErrDuplicateName, http.StatusBadRequest, "Name already registered"},
		{"no face", faceapi.ErrNoFace, http.StatusBadRequest, "No face detected in the image"},
		{"multiple faces", faceapi.ErrMultipleFaces, http.StatusBadRequest, "Multiple faces detected. Please use an image with only one face."},
		{"unexpected", errors.New("disk full"), http.StatusInternalServerError, "Error: disk full"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			h := newTestHandler(&mockRegistry{registerErr: tt.err})

			recorder := httptest.NewRecorder()
			h.Register(recorder, jsonRequest(t, http.MethodPost, "/register_face", RegisterRequest{Name: "alice", Image: "abc"}))

			assertStatusCode(t, recorder, tt.expectedStatus)
			assertJSONError(t, recorder, tt.expectedMsg)
		})
	}
}

func TestFacesHandler_Register_InvalidJSON(t *testing.T) {
	h := newTestHandler(&mockRegistry{})

	recorder := httptest.NewRecorder()
	h.Register(recorder, httptest.NewRequest(http.MethodPost, "/register_face", strings.NewReader("not json")))

	assertStatusCode(t, recorder, http.StatusBadRequest)
	assertJSONError(t, recorder, errInvalidRequestBody)
}

func TestFacesHandler_Recognize_Recognized(t *testing.T) {
	reg := &mockRegistry{match: registry.Match{Name: "alice", Distance: 0.3, Recognized: true, Confidence: 0.7}}
	h := newTestHandler(reg)

	recorder := httptest.NewRecorder()
	h.Recognize(recorder, jsonRequest(t, http.MethodPost, "/recognize_face", RecognizeRequest{Image: "abc"}))

	assertStatusCode(t, recorder, http.StatusOK)

	var result map[string]any
	parseJSONResponse(t, recorder, &result)
	if result["success"] != true || result["recognized"] != true {
		t.Errorf("unexpected flags %v", result)
	}
	if result["name"] != "alice" {
		t.Errorf("expected name alice, got %v", result["name"])
	}
	if result["confidence"] != 0.7 {
		t.Errorf("expected confidence 0.7, got %v", result["confidence"])
	}
	if result["message"] != "Face recognized as alice" {
		t.Errorf("unexpected message %v", result["message"])
	}
	if reg.lastRecognize.Model != "" {
		t.Errorf("expected empty model forwarded, got %q", reg.lastRecognize.Model)
	}
}

func TestFacesHandler_Recognize_NotRecognized(t *testing.T) {
	h := newTestHandler(&mockRegistry{match: registry.Match{Name: "alice", Distance: 0.9}})

	recorder := httptest.NewRecorder()
	h.Recognize(recorder, jsonRequest(t, http.MethodPost, "/recognize_face", RecognizeRequest{Image: "abc"}))

	assertStatusCode(t, recorder, http.StatusOK)

	var result map[string]any
	parseJSONResponse(t, recorder, &result)
	if result["success"] != true || result["recognized"] != false {
		t.Errorf("unexpected flags %v", result)
	}
	if _, ok := result["name"]; ok {
		t.Error("expected no name for an unrecognized face")
	}
	if _, ok := result["confidence"]; ok {
		t.Error("expected no confidence for an unrecognized face")
	}
	if result["message"] != "Face not recognized" {
		t.Errorf("unexpected message %v", result["message"])
	}
}

func TestFacesHandler_Recognize_NoRegisteredFaces(t *testing.T) {
	h := newTestHandler(&mockRegistry{recognizeErr: registry.ErrNoRegisteredFaces})

	recorder := httptest.NewRecorder()
	h.Recognize(recorder, jsonRequest(t, http.MethodPost, "/recognize_face", RecognizeRequest{Image: "abc"}))

	assertStatusCode(t, recorder, http.StatusNotFound)

	var result map[string]any
	parseJSONResponse(t, recorder, &result)
	if result["success"] != false || result["recognized"] != false {
		t.Errorf("unexpected flags %v", result)
	}
	if result["message"] != "No registered faces found" {
		t.Errorf("unexpected message %v", result["message"])
	}
}

func TestFacesHandler_Recognize_Errors(t *testing.T) {
	tests := []struct {
		name           string
		err            error
		expectedStatus int
		expectedMsg    string
	}{
		{"missing image", registry.ErrImageRequired, http.StatusBadRequest, "Image is required"},
		{"invalid image", registry.ErrInvalidImage, http.StatusBadRequest, "Invalid image format"},
		{"no face", faceapi.ErrNoFace, http.StatusBadRequest, "No face detected in the image"},
		{"model server down", &faceapi.APIError{StatusCode: 502, Body: "bad gateway"}, http.StatusInternalServerError, "Error: " + (&faceapi.APIError{StatusCode: 502, Body: "bad gateway"}).Error()},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			h := newTestHandler(&mockRegistry{recognizeErr: tt.err})

			recorder := httptest.NewRecorder()
			h.Recognize(recorder, jsonRequest(t, http.MethodPost, "/recognize_face", RecognizeRequest{Image: "abc"}))

			assertStatusCode(t, recorder, tt.expectedStatus)
			assertJSONError(t, recorder, tt.expectedMsg)
		})
	}
}

func TestFacesHandler_List(t *testing.T) {
	h := newTestHandler(&mockRegistry{names: []string{"alice", "bob"}})

	recorder := httptest.NewRecorder()
	h.List(recorder, httptest.NewRequest(http.MethodGet, "/get_registered_faces", nil))

	assertStatusCode(t, recorder, http.StatusOK)

	var result ListResponse
	parseJSONResponse(t, recorder, &result)
	if !result.Success || result.Count != 2 || len(result.Faces) != 2 || result.Faces[0] != "alice" {
		t.Errorf("unexpected response %+v", result)
	}
}

func TestFacesHandler_List_Empty(t *testing.T) {
	h := newTestHandler(&mockRegistry{})

	recorder := httptest.NewRecorder()
	h.List(recorder, httptest.NewRequest(http.MethodGet, "/get_registered_faces", nil))

	assertStatusCode(t, recorder, http.StatusOK)
	if !strings.Contains(recorder.Body.String(), `"faces":[]`) {
		t.Errorf("expected empty faces array, got %s", recorder.Body.String())
	}
}

func TestFacesHandler_List_Error(t *testing.T) {
	h := newTestHandler(&mockRegistry{listErr: errors.New("corrupt store")})

	recorder := httptest.NewRecorder()
	h.List(recorder, httptest.NewRequest(http.MethodGet, "/get_registered_faces", nil))

	assertStatusCode(t, recorder, http.StatusInternalServerError)
	assertJSONError(t, recorder, "Error: corrupt store")
}

func TestFacesHandler_Delete(t *testing.T) {
	reg := &mockRegistry{}
	h := newTestHandler(reg)

	req := requestWithChiParams(httptest.NewRequest(http.MethodDelete, "/delete_face/alice", nil), map[string]string{"name": "alice"})
	recorder := httptest.NewRecorder()
	h.Delete(recorder, req)

	assertStatusCode(t, recorder, http.StatusOK)

	var result MessageResponse
	parseJSONResponse(t, recorder, &result)
	if !result.Success || result.Message != "Face alice deleted successfully" {
		t.Errorf("unexpected response %+v", result)
	}
	if reg.lastDeleted != "alice" {
		t.Errorf("expected alice deleted, got %q", reg.lastDeleted)
	}
}

func TestFacesHandler_Delete_NotFound(t *testing.T) {
	h := newTestHandler(&mockRegistry{deleteErr: registry.ErrNotFound})

	req := requestWithChiParams(httptest.NewRequest(http.MethodDelete, "/delete_face/alice", nil), map[string]string{"name": "alice"})
	recorder := httptest.NewRecorder()
	h.Delete(recorder, req)

	assertStatusCode(t, recorder, http.StatusNotFound)
	assertJSONError(t, recorder, "Face not found")
}

func TestFacesHandler_Delete_EscapedName(t *testing.T) {
	reg := &mockRegistry{}
	h := newTestHandler(reg)

	req := requestWithChiParams(httptest.NewRequest(http.MethodDelete, "/delete_face/Nov%C3%A1k%2C%20Jan", nil),
		map[string]string{"name": "Nov%C3%A1k%2C%20Jan"})
	recorder := httptest.NewRecorder()
	h.Delete(recorder, req)

	assertStatusCode(t, recorder, http.StatusOK)
	if reg.lastDeleted != "Novák, Jan" {
		t.Errorf("expected unescaped name deleted, got %q", reg.lastDeleted)
	}
}

func TestFacesHandler_NameParamErrors(t *testing.T) {
	tests := []struct {
		name    string
		param   string
		message string
	}{
		{"bad escape", "alice%zz", "Invalid name"},
		{"empty", "", "Name is required"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			reg := &mockRegistry{}
			h := newTestHandler(reg)

			for _, handle := range []http.HandlerFunc{h.Delete, h.Similar} {
				req := requestWithChiParams(httptest.NewRequest(http.MethodGet, "/", nil), map[string]string{"name": tt.param})
				recorder := httptest.NewRecorder()
				handle(recorder, req)

				assertStatusCode(t, recorder, http.StatusBadRequest)
				assertJSONError(t, recorder, tt.message)
			}
			if reg.lastDeleted != "" {
				t.Errorf("registry should not be called, deleted %q", reg.lastDeleted)
			}
		})
	}
}

func TestFacesHandler_Similar(t *testing.T) {
	reg := &mockRegistry{similar: []registry.Similar{{Name: "alicia", Distance: 0.1}}}
	h := newTestHandler(reg)

	req := requestWithChiParams(httptest.NewRequest(http.MethodGet, "/similar_faces/alice?k=3", nil), map[string]string{"name": "alice"})
	recorder := httptest.NewRecorder()
	h.Similar(recorder, req)

	assertStatusCode(t, recorder, http.StatusOK)

	var result SimilarResponse
	parseJSONResponse(t, recorder, &result)
	if !result.Success || result.Name != "alice" || result.Count != 1 || result.Similar[0].Name != "alicia" {
		t.Errorf("unexpected response %+v", result)
	}
	if reg.lastK != 3 {
		t.Errorf("expected k=3, got %d", reg.lastK)
	}
}

func TestFacesHandler_Similar_DefaultK(t *testing.T) {
	reg := &mockRegistry{}
	h := newTestHandler(reg)

	req := requestWithChiParams(httptest.NewRequest(http.MethodGet, "/similar_faces/alice", nil), map[string]string{"name": "alice"})
	recorder := httptest.NewRecorder()
	h.Similar(recorder, req)

	assertStatusCode(t, recorder, http.StatusOK)
	if reg.lastK != registry.DefaultSimilarK {
		t.Errorf("expected default k, got %d", reg.lastK)
	}
	if !strings.Contains(recorder.Body.String(), `"similar":[]`) {
		t.Errorf("expected empty similar array, got %s", recorder.Body.String())
	}
}

func TestFacesHandler_Similar_InvalidK(t *testing.T) {
	for _, k := range []string{"0", "-1", "abc", "1000"} {
		t.Run(k, func(t *testing.T) {
			h := newTestHandler(&mockRegistry{})

			req := requestWithChiParams(httptest.NewRequest(http.MethodGet, "/similar_faces/alice?k="+k, nil), map[string]string{"name": "alice"})
			recorder := httptest.NewRecorder()
			h.Similar(recorder, req)

			assertStatusCode(t, recorder, http.StatusBadRequest)
		})
	}
}

func TestFacesHandler_Similar_NotFound(t *testing.T) {
	h := newTestHandler(&mockRegistry{similarErr: registry.ErrNotFound})

	req := requestWithChiParams(httptest.NewRequest(http.MethodGet, "/similar_faces/ghost", nil), map[string]string{"name": "ghost"})
	recorder := httptest.NewRecorder()
	h.Similar(recorder, req)

	assertStatusCode(t, recorder, http.StatusNotFound)
	assertJSONError(t, recorder, "Face not found")
}

func TestFacesHandler_Similar_Incomparable(t *testing.T) {
	h := newTestHandler(&mockRegistry{similarErr: fmt.Errorf("%w: zed", registry.ErrIncomparable)})

	req := requestWithChiParams(httptest.NewRequest(http.MethodGet, "/similar_faces/zed", nil), map[string]string{"name": "zed"})
	recorder := httptest.NewRecorder()
	h.Similar(recorder, req)

	assertStatusCode(t, recorder, http.StatusUnprocessableEntity)
	assertJSONError(t, recorder, "Face embedding dimension differs from the other registered faces")
}
