package httpapi

import (
	"net/http"
	"strings"

	"github.com/gin-gonic/gin"
	glog "github.com/goliatone/go-logger/glog"

	"github.com/goliatone/go-integrations/core"
)

type handlers struct {
	service       core.IntegrationService
	defaultUserID string
	logger        glog.Logger
}

type callbackBody struct {
	Code  string `json:"code" form:"code"`
	State string `json:"state" form:"state"`
}

type identity struct {
	userID         string
	organizationID string
}

func (h *handlers) root(c *gin.Context) {
	c.JSON(http.StatusOK, gin.H{"message": rootMessage})
}

func (h *handlers) authURLs(c *gin.Context) {
	id := h.identity(c)
	out, err := h.service.AuthURLs(c.Request.Context(), core.AuthURLsRequest{
		UserID:         id.userID,
		OrganizationID: id.organizationID,
	})
	if err != nil {
		h.writeError(c, err)
		return
	}
	urls := make(map[string]string, len(out))
	for provider, resp := range out {
		urls[provider] = resp.AuthURL
	}
	c.JSON(http.StatusOK, urls)
}

func (h *handlers) authorize(c *gin.Context) {
	id := h.identity(c)
	out, err := h.service.Authorize(c.Request.Context(), core.AuthorizeRequest{
		Provider:       c.Param("provider"),
		UserID:         id.userID,
		OrganizationID: id.organizationID,
	})
	if err != nil {
		h.writeError(c, err)
		return
	}
	c.JSON(http.StatusOK, out)
}

func (h *handlers) callbackJSON(c *gin.Context) {
	var body callbackBody
	if err := c.ShouldBindJSON(&body); err != nil {
		h.writeError(c, core.NewBadRequestError("Missing code or state parameter"))
		return
	}
	h.callback(c, body)
}

func (h *handlers) callbackQuery(c *gin.Context) {
	h.callback(c, callbackBody{Code: c.Query("code"), State: c.Query("state")})
}

func (h *handlers) callback(c *gin.Context, body callbackBody) {
	out, err := h.service.Callback(c.Request.Context(), core.CallbackRequest{
		Provider: c.Param("provider"),
		Code:     body.Code,
		State:    body.State,
	})
	if err != nil {
		h.writeError(c, err)
		return
	}
	c.JSON(http.StatusOK, out)
}

func (h *handlers) checkAuth(c *gin.Context) {
	id := h.identity(c)
	ok, err := h.service.HasCredentials(c.Request.Context(), h.credentialsRequest(c, id))
	if err != nil {
		h.writeError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"authenticated": ok})
}

func (h *handlers) credentials(c *gin.Context) {
	id := h.identity(c)
	out, err := h.service.GetCredentials(c.Request.Context(), h.credentialsRequest(c, id))
	if err != nil {
		h.writeError(c, err)
		return
	}
	c.JSON(http.StatusOK, out)
}

// items lists with the bearer token when one is sent, otherwise with the
// stored credentials of the request user.
func (h *handlers) items(c *gin.Context) {
	ctx := c.Request.Context()
	provider := c.Param("provider")
	token := strings.TrimSpace(c.GetHeader("Authorization"))
	if token == "" {
		creds, err := h.service.GetCredentials(ctx, h.credentialsRequest(c, h.identity(c)))
		if err != nil {
			h.writeError(c, err)
			return
		}
		access, _ := creds.Credentials["access_token"].(string)
		if !creds.Authenticated || access == "" {
			h.writeError(c, core.NewUnauthorizedError("authentication required"))
			return
		}
		token = access
	}

	items, err := h.service.ListItems(ctx, core.ListItemsRequest{Provider: provider, BearerToken: token})
	if err != nil {
		h.writeError(c, err)
		return
	}
	if items == nil {
		items = []core.IntegrationItem{}
	}
	c.JSON(http.StatusOK, items)
}

func (h *handlers) credentialsRequest(c *gin.Context, id identity) core.CredentialsRequest {
	return core.CredentialsRequest{
		Provider:       c.Param("provider"),
		UserID:         id.userID,
		OrganizationID: id.organizationID,
	}
}

func (h *handlers) identity(c *gin.Context) identity {
	userID := firstNonEmpty(c.GetHeader(headerUserID), c.Query(queryUserID), h.defaultUserID)
	orgID := firstNonEmpty(c.GetHeader(headerOrgID), c.Query(queryOrgID))
	return identity{userID: userID, organizationID: orgID}
}

func (h *handlers) writeError(c *gin.Context, err error) {
	status, body := errorResponse(err)
	if status >= http.StatusInternalServerError {
		h.logger.Error("request failed", "path", c.FullPath(), "status", status, "error", err.Error())
	}
	c.AbortWithStatusJSON(status, body)
}

func firstNonEmpty(values ...string) string {
	for _, value := range values {
		if trimmed := strings.TrimSpace(value); trimmed != "" {
			return trimmed
		}
	}
	return ""
}
