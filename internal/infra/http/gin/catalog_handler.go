package ginserver

import (
	"fmt"
	"log/slog"
	"net/http"
	"strconv"
	"strings"

	gin "github.com/gin-gonic/gin"

	"mujthriftz/internal/app/commands"
	"mujthriftz/internal/app/dto"
	catalogapp "mujthriftz/internal/app/handlers/catalog"
	"mujthriftz/internal/app/queries"
	domaincatalog "mujthriftz/internal/domain/catalog"
)

// CatalogHandler serves listings, requests and roommate posts under /catalog/:kind.
type CatalogHandler struct {
	Commands commands.Bus
	Queries  queries.Bus
	Logger   *slog.Logger
}

type documentRequest struct {
	Title       string   `json:"title"`
	Description string   `json:"description"`
	Tags        []string `json:"tags"`
	Category    string   `json:"category"`
	Condition   string   `json:"condition"`
	Price       int64    `json:"price"`
	Negotiable  bool     `json:"negotiable"`
	Location    string   `json:"location"`
	Gender      string   `json:"gender"`
	RoomType    string   `json:"room_type"`
	Urgency     string   `json:"urgency"`
	AssetIDs    []string `json:"asset_ids"`
}

type documentPatchRequest struct {
	Title       *string   `json:"title"`
	Description *string   `json:"description"`
	Tags        *[]string `json:"tags"`
	Category    *string   `json:"category"`
	Condition   *string   `json:"condition"`
	Price       *int64    `json:"price"`
	Negotiable  *bool     `json:"negotiable"`
	Location    *string   `json:"location"`
	Gender      *string   `json:"gender"`
	RoomType    *string   `json:"room_type"`
	Urgency     *string   `json:"urgency"`
	AssetIDs    *[]string `json:"asset_ids"`
	Active      *bool     `json:"active"`
}

// Browse fetches the active set once and narrows it in memory.
func (h CatalogHandler) Browse(c *gin.Context) {
	filter, err := parseFilter(c)
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}
	query := catalogapp.BrowseCatalogQuery{Kind: c.Param("kind"), Filter: filter}
	result, err := queries.Ask[catalogapp.BrowseCatalogQuery, dto.DocumentList](c.Request.Context(), h.Queries, query)
	if err != nil {
		respondError(c, h.Logger, err, "browse catalog", "kind", query.Kind)
		return
	}
	c.JSON(http.StatusOK, result)
}

func (h CatalogHandler) Get(c *gin.Context) {
	query := catalogapp.GetDocumentQuery{Kind: c.Param("kind"), Slug: c.Param("ref")}
	if p, ok := currentPrincipal(c); ok {
		query.RequesterID = p.ID
	}
	doc, err := queries.Ask[catalogapp.GetDocumentQuery, dto.Document](c.Request.Context(), h.Queries, query)
	if err != nil {
		respondError(c, h.Logger, err, "get document", "kind", query.Kind, "slug", query.Slug)
		return
	}
	c.JSON(http.StatusOK, doc)
}

func (h CatalogHandler) Create(c *gin.Context) {
	principal, ok := requireUser(c)
	if !ok {
		return
	}
	var req documentRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid payload"})
		return
	}
	cmd := catalogapp.CreateDocumentCommand{
		OwnerID: principal.ID,
		Kind:    c.Param("kind"),
		Payload: catalogapp.Payload{
			Title:       req.Title,
			Description: req.Description,
			Tags:        req.Tags,
			Category:    req.Category,
			Condition:   req.Condition,
			Price:       req.Price,
			Negotiable:  req.Negotiable,
			Location:    req.Location,
			Gender:      req.Gender,
			RoomType:    req.RoomType,
			Urgency:     req.Urgency,
			AssetIDs:    req.AssetIDs,
		},
	}
	doc, err := commands.Dispatch[catalogapp.CreateDocumentCommand, dto.Document](c.Request.Context(), h.Commands, cmd)
	if err != nil {
		respondError(c, h.Logger, err, "create document", "kind", cmd.Kind, "owner_id", principal.ID)
		return
	}
	c.Header("Location", fmt.Sprintf("/api/v1/catalog/%s/%s", doc.Type, doc.Slug))
	c.JSON(http.StatusCreated, doc)
}

func (h CatalogHandler) Update(c *gin.Context) {
	principal, ok := requireUser(c)
	if !ok {
		return
	}
	var req documentPatchRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid payload"})
		return
	}
	cmd := catalogapp.UpdateDocumentCommand{
		OwnerID:    principal.ID,
		Kind:       c.Param("kind"),
		DocumentID: c.Param("ref"),
		Patch: catalogapp.Patch{
			Title:       req.Title,
			Description: req.Description,
			Tags:        req.Tags,
			Category:    req.Category,
			Condition:   req.Condition,
			Price:       req.Price,
			Negotiable:  req.Negotiable,
			Location:    req.Location,
			Gender:      req.Gender,
			RoomType:    req.RoomType,
			Urgency:     req.Urgency,
			AssetIDs:    req.AssetIDs,
			Active:      req.Active,
		},
	}
	doc, err := commands.Dispatch[catalogapp.UpdateDocumentCommand, dto.Document](c.Request.Context(), h.Commands, cmd)
	if err != nil {
		respondError(c, h.Logger, err, "update document", "document_id", cmd.DocumentID, "owner_id", principal.ID)
		return
	}
	c.JSON(http.StatusOK, doc)
}

func (h CatalogHandler) Delete(c *gin.Context) {
	principal, ok := requireUser(c)
	if !ok {
		return
	}
	hard, _ := strconv.ParseBool(c.DefaultQuery("hard", "false"))
	cmd := catalogapp.DeleteDocumentCommand{
		OwnerID:    principal.ID,
		Kind:       c.Param("kind"),
		DocumentID: c.Param("ref"),
		Hard:       hard,
	}
	doc, err := commands.Dispatch[catalogapp.DeleteDocumentCommand, dto.Document](c.Request.Context(), h.Commands, cmd)
	if err != nil {
		respondError(c, h.Logger, err, "delete document", "document_id", cmd.DocumentID, "owner_id", principal.ID, "hard", hard)
		return
	}
	if hard {
		c.Status(http.StatusNoContent)
		return
	}
	c.JSON(http.StatusOK, doc)
}

func (h CatalogHandler) Mine(c *gin.Context) {
	principal, ok := requireUser(c)
	if !ok {
		return
	}
	result, err := queries.Ask[catalogapp.ListMineQuery, dto.DocumentList](c.Request.Context(), h.Queries, catalogapp.ListMineQuery{OwnerID: principal.ID})
	if err != nil {
		respondError(c, h.Logger, err, "list mine", "owner_id", principal.ID)
		return
	}
	c.JSON(http.StatusOK, result)
}

func (h CatalogHandler) UploadAsset(c *gin.Context) {
	principal, ok := requireUser(c)
	if !ok {
		return
	}
	c.Request.Body = http.MaxBytesReader(c.Writer, c.Request.Body, catalogapp.MaxAssetSize+1<<20)
	header, err := c.FormFile("file")
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "file is required"})
		return
	}
	file, err := header.Open()
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "cannot read file"})
		return
	}
	defer file.Close()

	cmd := catalogapp.UploadAssetCommand{
		OwnerID:     principal.ID,
		Filename:    header.Filename,
		ContentType: header.Header.Get("Content-Type"),
		Size:        header.Size,
		Body:        file,
	}
	asset, err := commands.Dispatch[catalogapp.UploadAssetCommand, dto.Asset](c.Request.Context(), h.Commands, cmd)
	if err != nil {
		respondError(c, h.Logger, err, "upload asset", "owner_id", principal.ID, "filename", header.Filename)
		return
	}
	c.JSON(http.StatusCreated, asset)
}

func parseFilter(c *gin.Context) (domaincatalog.FilterState, error) {
	filter := domaincatalog.FilterState{
		Query:      c.Query("q"),
		Categories: queryList(c, "category"),
		Conditions: queryList(c, "condition"),
		Locations:  queryList(c, "location"),
		Genders:    queryList(c, "gender"),
		RoomTypes:  queryList(c, "room_type"),
		Urgencies:  queryList(c, "urgency"),
		Sort:       domaincatalog.SortOrder(strings.ToLower(strings.TrimSpace(c.Query("sort")))),
	}
	var err error
	if filter.PriceMin, err = parsePrice(c.Query("price_min")); err != nil {
		return domaincatalog.FilterState{}, fmt.Errorf("invalid price_min: %w", err)
	}
	if raw, ok := c.GetQuery("price_max"); ok && strings.TrimSpace(raw) != "" {
		limit, err := parsePrice(raw)
		if err != nil {
			return domaincatalog.FilterState{}, fmt.Errorf("invalid price_max: %w", err)
		}
		filter.PriceMax = domaincatalog.PriceAtMost(limit)
	}
	return filter, nil
}

// queryList accepts both repeated keys and comma separated values.
func queryList(c *gin.Context, key string) []string {
	var out []string
	for _, raw := range c.QueryArray(key) {
		for _, part := range strings.Split(raw, ",") {
			if part = strings.TrimSpace(part); part != "" {
				out = append(out, part)
			}
		}
	}
	return out
}

func parsePrice(raw string) (int64, error) {
	raw = strings.TrimSpace(raw)
	if raw == "" {
		return 0, nil
	}
	return strconv.ParseInt(raw, 10, 64)
}

var _ CatalogHTTP = (*CatalogHandler)(nil)
