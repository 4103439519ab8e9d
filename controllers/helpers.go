package controllers

import (
	"errors"
	"io"
	"mime/multipart"
	"net/http"
	"strconv"
	"strings"

	"github.com/gin-gonic/gin"

	"github.com/postapi/postapi/services"
	"github.com/postapi/postapi/storage"
	"github.com/postapi/postapi/utils"
)

// respondError maps a service error kind onto the HTTP status and business code.
func respondError(ctx *gin.Context, err error) {
	var verr *services.ValidationError
	switch {
	case errors.As(err, &verr):
		utils.Respond(ctx, http.StatusBadRequest, 40001, "validation failed", gin.H{"field": verr.Field, "rule": verr.Rule})
		ctx.Abort()
	case errors.Is(err, services.ErrValidation):
		utils.Error(ctx, http.StatusBadRequest, 40002, err.Error())
	case errors.Is(err, services.ErrUnauthenticated):
		utils.Error(ctx, http.StatusUnauthorized, 40110, "unauthorized")
	case errors.Is(err, services.ErrForbidden):
		utils.Error(ctx, http.StatusForbidden, 40310, "forbidden")
	case errors.Is(err, services.ErrNotFound):
		utils.Error(ctx, http.StatusNotFound, 40410, err.Error())
	case errors.Is(err, services.ErrAlreadyMember):
		utils.Error(ctx, http.StatusConflict, 40911, "already a member")
	case errors.Is(err, services.ErrConflict):
		utils.Error(ctx, http.StatusConflict, 40910, err.Error())
	case errors.Is(err, services.ErrUnavailable):
		utils.Sugar.Warnw("dependency unavailable", "path", ctx.Request.URL.Path, "err", err)
		utils.Error(ctx, http.StatusBadGateway, 50210, "upstream storage unavailable")
	case errors.Is(err, services.ErrCyclicStructure):
		utils.Sugar.Errorw("corrupt comment thread", "path", ctx.Request.URL.Path, "err", err)
		utils.Error(ctx, http.StatusInternalServerError, 50011, "comment thread is corrupt")
	default:
		utils.Sugar.Errorw("request failed", "path", ctx.Request.URL.Path, "err", err)
		utils.Error(ctx, http.StatusInternalServerError, 50010, "internal error")
	}
}

// paramID parses a positive numeric path parameter, answering 400 when it is not one.
func paramID(ctx *gin.Context, name string) (uint, bool) {
	id, err := strconv.ParseUint(strings.TrimSpace(ctx.Param(name)), 10, 64)
	if err != nil || id == 0 {
		utils.Error(ctx, http.StatusBadRequest, 40003, "invalid "+name)
		return 0, false
	}
	return uint(id), true
}

func parsePagination(pageStr, sizeStr string) (int, int) {
	page := 1
	pageSize := 10
	if p, err := strconv.Atoi(pageStr); err == nil && p > 0 {
		page = p
	}
	if s, err := strconv.Atoi(sizeStr); err == nil && s > 0 && s <= 100 {
		pageSize = s
	}
	return page, pageSize
}

func pagination(ctx *gin.Context) (int, int) {
	return parsePagination(ctx.Query("page"), ctx.Query("page_size"))
}

func paged(items interface{}, page, pageSize int) gin.H {
	return gin.H{
		"items":      items,
		"pagination": gin.H{"page": page, "page_size": pageSize},
	}
}

// formFiles opens the multipart files under field. The returned closer must
// be called once the uploads are consumed.
func formFiles(ctx *gin.Context, field string) ([]storage.FileUpload, func(), error) {
	form, err := ctx.MultipartForm()
	if err != nil || form == nil {
		return nil, func() {}, nil
	}
	var (
		files   []storage.FileUpload
		closers []io.Closer
	)
	closeAll := func() {
		for _, c := range closers {
			_ = c.Close()
		}
	}
	for _, fh := range form.File[field] {
		f, err := fh.Open()
		if err != nil {
			closeAll()
			return nil, func() {}, err
		}
		closers = append(closers, f)
		files = append(files, fileUpload(fh, f))
	}
	return files, closeAll, nil
}

// formFile opens a single optional multipart file.
func formFile(ctx *gin.Context, field string) (storage.FileUpload, func(), error) {
	fh, err := ctx.FormFile(field)
	if err != nil {
		return storage.FileUpload{}, func() {}, nil
	}
	f, err := fh.Open()
	if err != nil {
		return storage.FileUpload{}, func() {}, err
	}
	return fileUpload(fh, f), func() { _ = f.Close() }, nil
}

func fileUpload(fh *multipart.FileHeader, f multipart.File) storage.FileUpload {
	return storage.FileUpload{
		Name:        fh.Filename,
		ContentType: fh.Header.Get("Content-Type"),
		Size:        fh.Size,
		Reader:      f,
	}
}
