package controllers

import (
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/postapi/postapi/services"
	"github.com/postapi/postapi/utils"
)

func init() {
	gin.SetMode(gin.TestMode)
}

func TestRespondErrorMapsKinds(t *testing.T) {
	cases := []struct {
		err    error
		status int
		code   int
	}{
		{&services.ValidationError{Field: "content", Rule: "min=8"}, http.StatusBadRequest, 40001},
		{fmt.Errorf("get post: %w", services.ErrNotFound), http.StatusNotFound, 40410},
		{fmt.Errorf("post 3: %w", services.ErrForbidden), http.StatusForbidden, 40310},
		{services.ErrUnauthenticated, http.StatusUnauthorized, 40110},
		{fmt.Errorf("join group 1: %w", services.ErrAlreadyMember), http.StatusConflict, 40911},
		{fmt.Errorf("username %q: %w", "bob", services.ErrConflict), http.StatusConflict, 40910},
		{fmt.Errorf("upload: %w", services.ErrUnavailable), http.StatusBadGateway, 50210},
		{services.ErrCyclicStructure, http.StatusInternalServerError, 50011},
		{errors.New("disk on fire"), http.StatusInternalServerError, 50010},
	}
	for _, tc := range cases {
		t.Run(tc.err.Error(), func(t *testing.T) {
			w := httptest.NewRecorder()
			ctx, _ := gin.CreateTestContext(w)
			ctx.Request = httptest.NewRequest(http.MethodGet, "/x", nil)

			respondError(ctx, tc.err)

			assert.Equal(t, tc.status, w.Code)
			assert.True(t, ctx.IsAborted())
			var body utils.JSONResponse
			require.NoError(t, json.Unmarshal(w.Body.Bytes(), &body))
			assert.Equal(t, tc.code, body.Code)
		})
	}
}

func TestValidationErrorCarriesField(t *testing.T) {
	w := httptest.NewRecorder()
	ctx, _ := gin.CreateTestContext(w)
	ctx.Request = httptest.NewRequest(http.MethodPost, "/x", nil)

	respondError(ctx, &services.ValidationError{Field: "username", Rule: "min=4"})

	var body struct {
		Data map[string]string `json:"data"`
	}
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &body))
	assert.Equal(t, "username", body.Data["field"])
	assert.Equal(t, "min=4", body.Data["rule"])
}

func TestParsePagination(t *testing.T) {
	page, size := parsePagination("", "")
	assert.Equal(t, 1, page)
	assert.Equal(t, 10, size)

	page, size = parsePagination("3", "25")
	assert.Equal(t, 3, page)
	assert.Equal(t, 25, size)

	page, size = parsePagination("-1", "500")
	assert.Equal(t, 1, page)
	assert.Equal(t, 10, size)
}

func TestParamID(t *testing.T) {
	r := gin.New()
	r.GET("/posts/:id", func(c *gin.Context) {
		id, ok := paramID(c, "id")
		if !ok {
			return
		}
		c.JSON(http.StatusOK, gin.H{"id": id})
	})

	for path, status := range map[string]int{"/posts/12": http.StatusOK, "/posts/0": http.StatusBadRequest, "/posts/x": http.StatusBadRequest} {
		w := httptest.NewRecorder()
		r.ServeHTTP(w, httptest.NewRequest(http.MethodGet, path, nil))
		assert.Equal(t, status, w.Code, path)
	}
}
