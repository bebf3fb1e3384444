package api

import (
	"bytes"
	"errors"
	"io"
	"net/http"
	"strconv"

	"github.com/annel0/terragen/internal/terrain"
	"github.com/gin-gonic/gin"
)

// HeightsResponse отдаёт сетку высот построчно
type HeightsResponse struct {
	ID      string      `json:"id"`
	Width   int         `json:"width"`
	Height  int         `json:"height"`
	Depth   float64     `json:"depth"`
	Scaled  bool        `json:"scaled"`
	Heights [][]float64 `json:"heights"`
}

// HeightResponse отдаёт высоту одной вершины
type HeightResponse struct {
	ID     string  `json:"id"`
	X      int     `json:"x"`
	Y      int     `json:"y"`
	Height float64 `json:"height"`
}

// bindRequest накладывает JSON тела на параметры по умолчанию.
// Пустое тело означает параметры по умолчанию.
func (rs *RestServer) bindRequest(c *gin.Context) (terrain.Request, bool) {
	req := rs.defaults
	if err := c.ShouldBindJSON(&req); err != nil && !errors.Is(err, io.EOF) {
		badRequest(c, "Неверный формат запроса: "+err.Error())
		return req, false
	}
	return req, true
}

func (rs *RestServer) handleCreateTerrain(c *gin.Context) {
	req, ok := rs.bindRequest(c)
	if !ok {
		return
	}

	rec, err := rs.service.Create(c.Request.Context(), req)
	if err != nil {
		rs.respondError(c, err)
		return
	}
	c.JSON(http.StatusCreated, GenericResponse{Success: true, Message: "Ландшафт сгенерирован", Data: rec})
}

func (rs *RestServer) handleCreateRandomTerrain(c *gin.Context) {
	req, ok := rs.bindRequest(c)
	if !ok {
		return
	}

	rec, err := rs.service.CreateRandom(c.Request.Context(), req)
	if err != nil {
		rs.respondError(c, err)
		return
	}
	c.JSON(http.StatusCreated, GenericResponse{Success: true, Message: "Ландшафт со случайным шумом сгенерирован", Data: rec})
}

func (rs *RestServer) handleListTerrain(c *gin.Context) {
	limit := 50
	if raw := c.Query("limit"); raw != "" {
		v, err := strconv.Atoi(raw)
		if err != nil || v < 0 {
			badRequest(c, "limit должен быть неотрицательным числом")
			return
		}
		limit = v
	}

	recs, err := rs.service.List(c.Request.Context(), limit)
	if err != nil {
		rs.respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, GenericResponse{Success: true, Message: "Список ландшафтов", Data: recs})
}

func (rs *RestServer) handleGetTerrain(c *gin.Context) {
	rec, err := rs.service.Get(c.Request.Context(), c.Param("id"))
	if err != nil {
		rs.respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, GenericResponse{Success: true, Message: "Ландшафт", Data: rec})
}

func (rs *RestServer) handleGetHeights(c *gin.Context) {
	ctx := c.Request.Context()
	id := c.Param("id")

	rec, err := rs.service.Get(ctx, id)
	if err != nil {
		rs.respondError(c, err)
		return
	}
	grid, err := rs.service.Heights(ctx, id)
	if err != nil {
		rs.respondError(c, err)
		return
	}

	scaled := c.Query("scaled") == "true"
	if scaled {
		grid = grid.Scaled(rec.Depth)
	}

	c.JSON(http.StatusOK, HeightsResponse{
		ID:      id,
		Width:   grid.Width(),
		Height:  grid.Height(),
		Depth:   rec.Depth,
		Scaled:  scaled,
		Heights: grid.Rows(),
	})
}

func (rs *RestServer) handleGetHeightAt(c *gin.Context) {
	x, errX := strconv.Atoi(c.Query("x"))
	y, errY := strconv.Atoi(c.Query("y"))
	if errX != nil || errY != nil {
		badRequest(c, "x и y должны быть целыми числами")
		return
	}

	id := c.Param("id")
	h, err := rs.service.HeightAt(c.Request.Context(), id, x, y)
	if err != nil {
		rs.respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, HeightResponse{ID: id, X: x, Y: y, Height: h})
}

func (rs *RestServer) handlePreviewPNG(c *gin.Context) {
	grid, err := rs.service.Heights(c.Request.Context(), c.Param("id"))
	if err != nil {
		rs.respondError(c, err)
		return
	}

	var buf bytes.Buffer
	if err := grid.WritePNG(&buf); err != nil {
		rs.respondError(c, err)
		return
	}
	c.Data(http.StatusOK, "image/png", buf.Bytes())
}

func (rs *RestServer) handleRAW16(c *gin.Context) {
	id := c.Param("id")
	grid, err := rs.service.Heights(c.Request.Context(), id)
	if err != nil {
		rs.respondError(c, err)
		return
	}

	var buf bytes.Buffer
	if err := grid.WriteRAW16(&buf); err != nil {
		rs.respondError(c, err)
		return
	}
	c.Header("Content-Disposition", "attachment; filename=\""+id+".raw\"")
	c.Header("X-Terrain-Width", strconv.Itoa(grid.Width()))
	c.Header("X-Terrain-Height", strconv.Itoa(grid.Height()))
	c.Data(http.StatusOK, "application/octet-stream", buf.Bytes())
}

func (rs *RestServer) handleDeleteTerrain(c *gin.Context) {
	if err := rs.service.Delete(c.Request.Context(), c.Param("id")); err != nil {
		rs.respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, GenericResponse{Success: true, Message: "Ландшафт удалён"})
}
