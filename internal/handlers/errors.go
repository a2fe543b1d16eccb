// internal/handlers/errors.go
package handlers

import (
	"errors"
	"net/http"
	"strings"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	"github.com/sirupsen/logrus"

	"github.com/javajoker/escrow-ledger/internal/i18n"
	"github.com/javajoker/escrow-ledger/internal/services"
	"github.com/javajoker/escrow-ledger/internal/utils"
)

var statusByKind = map[services.ErrorKind]int{
	services.KindValidation:    http.StatusBadRequest,
	services.KindStateConflict: http.StatusConflict,
	services.KindNotFound:      http.StatusNotFound,
	services.KindConsistency:   http.StatusInternalServerError,
}

// respondError maps ledger errors to their HTTP status and stable code.
// Anything else is logged and reported as an internal error.
func respondError(c *gin.Context, err error) {
	var ledgerErr *services.LedgerError
	if !errors.As(err, &ledgerErr) {
		logrus.WithError(err).WithField("path", c.Request.URL.Path).Error("Unhandled error")
		utils.InternalErrorResponse(c, "")
		return
	}

	if ledgerErr.Kind == services.KindConsistency {
		logrus.WithError(err).WithField("path", c.Request.URL.Path).Error("Ledger consistency error")
	}

	lang := utils.GetLangFromContext(c)
	key := i18n.LedgerPrefix + strings.ToLower(ledgerErr.Code)
	message := i18n.T(lang, key)
	if message == key {
		message = ledgerErr.Message
	}

	status, ok := statusByKind[ledgerErr.Kind]
	if !ok {
		status = http.StatusInternalServerError
	}
	utils.ErrorResponse(c, status, ledgerErr.Code, message, nil)
}

// bindAndValidate decodes the JSON body into req and runs struct validation,
// writing the error response itself when either step fails.
func bindAndValidate(c *gin.Context, req interface{}) bool {
	if err := c.ShouldBindJSON(req); err != nil {
		lang := utils.GetLangFromContext(c)
		utils.BadRequestResponse(c, i18n.T(lang, i18n.KeyValidationInvalid, "input"), err.Error())
		return false
	}
	if validationErrors := utils.GetValidationErrors(utils.ValidateStruct(req)); len(validationErrors) > 0 {
		utils.ValidationErrorResponse(c, validationErrors)
		return false
	}
	return true
}

func paramUUID(c *gin.Context, name, resource string) (uuid.UUID, bool) {
	id, err := uuid.Parse(c.Param(name))
	if err != nil {
		lang := utils.GetLangFromContext(c)
		utils.BadRequestResponse(c, i18n.T(lang, i18n.KeyInvalidID, resource), nil)
		return uuid.Nil, false
	}
	return id, true
}

func currentUser(c *gin.Context) (uuid.UUID, bool) {
	userID, ok := utils.GetUserIDFromContext(c)
	if !ok {
		utils.UnauthorizedResponse(c, "")
	}
	return userID, ok
}

func isAdmin(c *gin.Context) bool {
	userType, _ := utils.GetUserTypeFromContext(c)
	return userType == "admin"
}
