// Package handler provides HTTP handlers for the API.
package handler

import (
	"net/http"
	"path/filepath"
	"strconv"
	"strings"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"

	"github.com/reportgate/reportgate/pkg/errors"
	"github.com/reportgate/reportgate/pkg/logger"
)

// validateFilename validates a filename to prevent path traversal attacks
// Returns true if the filename is safe, false otherwise
func validateFilename(name string) bool {
	if name == "" {
		return false
	}

	// Check for path traversal patterns
	if strings.Contains(name, "..") {
		return false
	}

	// Check for directory separators (both Unix and Windows)
	if strings.Contains(name, "/") || strings.Contains(name, "\\") {
		return false
	}

	// Check for null bytes (can be used to bypass checks)
	if strings.Contains(name, "\x00") {
		return false
	}

	cleaned := filepath.Clean(name)
	if cleaned != name || cleaned == "." || cleaned == ".." {
		return false
	}

	return true
}

// withinDir reports whether path resolves to a file inside baseDir
func withinDir(baseDir, path string) bool {
	absBase, err := filepath.Abs(baseDir)
	if err != nil {
		return false
	}
	absPath, err := filepath.Abs(path)
	if err != nil {
		return false
	}
	return strings.HasPrefix(filepath.Clean(absPath), absBase+string(filepath.Separator))
}

// parseID reads a positive numeric path parameter
func parseID(c *gin.Context, name string) (uint, bool) {
	raw := c.Param(name)
	id, err := strconv.ParseUint(raw, 10, 64)
	if err != nil || id == 0 {
		c.JSON(http.StatusBadRequest, gin.H{
			"code":    errors.ErrCodeValidation,
			"message": "Invalid " + name + ": " + raw,
		})
		return 0, false
	}
	return uint(id), true
}

// respondError writes err as {code, message} with the status of its code.
// Messages of server-side failures are not exposed.
func respondError(c *gin.Context, err error) {
	appErr, ok := errors.AsAppError(err)
	if !ok {
		appErr = errors.ErrInternal("unexpected error", err)
	}

	status := appErr.HTTPStatus()
	message := appErr.Message
	if status >= http.StatusInternalServerError {
		logger.Error("Request failed",
			zap.String("path", c.FullPath()),
			zap.String("code", string(appErr.Code)),
			zap.Error(err),
		)
		if appErr.Code == errors.ErrCodeInternal {
			message = "Internal server error"
		}
	}
	c.JSON(status, gin.H{
		"code":    appErr.Code,
		"message": message,
	})
}
