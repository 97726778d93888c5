// Package rest serves a service.Service over HTTP with gin.
//
//	r := rest.NewRouter(svc, rest.WithOrigins("https://shop.example"))
//	_ = r.Run(":8080")
//
// Query parameters follow service.ParamsFromValues:
//
//	GET /records/orders?filter=total,gt,100&join=customers&order=id,desc&page=1,20
//
// Errors are returned as an ErrorResponse with the status chosen by Status.
package rest
