// Package trend fits an ordinary-least-squares line per entity and evaluates
// it back onto every observation.
//
// # Usage
//
//	result, err := trend.Estimate([]domain.Observation{
//	    {EntityID: "A", Period: 2019, Value: 100},
//	    {EntityID: "A", Period: 2020, Value: 200},
//	})
//	if err != nil {
//	    return err
//	}
//	fitted, _ := result.Lookup("A", 2020)
//
// # Degenerate partitions
//
// A partition with a single observation, or whose periods are all equal, has
// no defined slope. It is fitted with slope 0 and an intercept equal to the
// mean value, so a single point is reproduced exactly.
//
// The package holds no state. Concurrent calls are safe.
package trend
