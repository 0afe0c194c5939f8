package api

import (
	restfulspec "github.com/emicklei/go-restful-openapi/v2"
	"github.com/emicklei/go-restful/v3"

	"github.com/convotest/convotest/internal/api/middleware"
	"github.com/convotest/convotest/internal/models"
)

func RegisterRoutes(container *restful.Container, handler *Handler) {
	ws := new(restful.WebService)

	ws.
		Path("/api/v1").
		Consumes(restful.MIME_JSON).
		Produces(restful.MIME_JSON)

	ws.
		Route(ws.GET("/health").
			To(handler.Health).
			Doc("Health check").
			Metadata(restfulspec.KeyOpenAPITags, []string{"health"}).
			Writes(HealthResponse{}).
			Returns(200, "OK", HealthResponse{}))

	ws.
		Route(ws.POST("/runs").
			To(handler.StartRun).
			Doc("Start a test run against an agent").
			Metadata(restfulspec.KeyOpenAPITags, []string{"runs"}).
			Reads(StartRunRequest{}).
			Writes(StartRunResponse{}).
			Returns(202, "Accepted", StartRunResponse{}).
			Returns(400, "Bad Request", middleware.ErrorResponse{}).
			Returns(500, "Internal Server Error", middleware.ErrorResponse{}))

	ws.
		Route(ws.POST("/runs/{run_id}/cancel").
			To(handler.CancelRun).
			Doc("Cancel a running test run").
			Metadata(restfulspec.KeyOpenAPITags, []string{"runs"}).
			Param(ws.PathParameter("run_id", "Run identifier").DataType("string")).
			Returns(204, "No Content", nil).
			Returns(404, "Run Not Found", middleware.ErrorResponse{}).
			Returns(500, "Internal Server Error", middleware.ErrorResponse{}))

	ws.
		Route(ws.GET("/runs/{run_id}/progress").
			To(handler.Progress).
			Doc("Get run progress").
			Metadata(restfulspec.KeyOpenAPITags, []string{"runs"}).
			Param(ws.PathParameter("run_id", "Run identifier").DataType("string")).
			Writes(models.RunProgress{}).
			Returns(200, "OK", models.RunProgress{}).
			Returns(404, "Run Not Found", middleware.ErrorResponse{}))

	ws.
		Route(ws.GET("/runs/{run_id}/results").
			To(handler.Results).
			Doc("List run results").
			Metadata(restfulspec.KeyOpenAPITags, []string{"runs"}).
			Param(ws.PathParameter("run_id", "Run identifier").DataType("string")).
			Param(ws.QueryParameter("skip", "Number of results to skip, for tailing a live run").DataType("integer").Required(false)).
			Writes(ResultsResponse{}).
			Returns(200, "OK", ResultsResponse{}).
			Returns(500, "Internal Server Error", middleware.ErrorResponse{}))

	ws.
		Route(ws.GET("/agents").
			To(handler.Agents).
			Doc("List agents visible to a principal across all regions").
			Metadata(restfulspec.KeyOpenAPITags, []string{"agents"}).
			Param(ws.QueryParameter("principal", "Requesting user identifier").DataType("string")).
			Param(ws.QueryParameter("scope", "Deployment scope to search").DataType("string")).
			Writes(AgentsResponse{}).
			Returns(200, "OK", AgentsResponse{}).
			Returns(400, "Bad Request", middleware.ErrorResponse{}).
			Returns(403, "Permission Denied", middleware.ErrorResponse{}).
			Returns(502, "Upstream Failure", middleware.ErrorResponse{}))

	ws.
		Route(ws.DELETE("/agents/cache").
			To(handler.InvalidateCache).
			Doc("Invalidate the cached agent listing for a principal and scope").
			Metadata(restfulspec.KeyOpenAPITags, []string{"agents"}).
			Param(ws.QueryParameter("principal", "Requesting user identifier").DataType("string")).
			Param(ws.QueryParameter("scope", "Deployment scope").DataType("string")).
			Returns(204, "No Content", nil).
			Returns(400, "Bad Request", middleware.ErrorResponse{}).
			Returns(500, "Internal Server Error", middleware.ErrorResponse{}))

	container.Add(ws)
}
