// Package service exposes the records of a reflected database.
//
// A Service combines a driver, a table source (usually an
// inspect.Reflector) and optional privacy policies:
//
//	r, err := inspect.NewReflector(drv)
//	if err != nil {
//		return err
//	}
//	svc, err := service.New(drv, r, service.WithPageSize(20, 100))
//	if err != nil {
//		return err
//	}
//	res, err := svc.List(ctx, "orders", service.Params{
//		Filters: map[string][]string{"filter": {"total,gt,100"}},
//		Join:    []string{"customers"},
//		Order:   []string{"id,desc"},
//		Page:    "1,10",
//	})
//
// List resolves joins with one statement per joined table, independent of
// the number of records. Batch writes such as UpdateMany run in a single
// transaction. Transactions can also be held open across calls:
//
//	ctx, err := svc.Begin(ctx)
//	if err != nil {
//		return err
//	}
//	if _, err := svc.Delete(ctx, "orders", 7); err != nil {
//		return errors.Join(err, svc.Rollback(ctx))
//	}
//	return svc.Commit(ctx)
package service
