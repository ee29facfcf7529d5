/*
aggregate.go - Sales aggregation for one calculation run

PURPOSE:
  Groups raw sales facts by employee and by (employee, vehicle type), and
  computes branch-level unit totals. The aggregation is total: every input
  row inside the period is attributed to exactly one employee.

ROLE/BRANCH RESOLUTION:
  The salespeople roster is authoritative for role and branch. An employee
  missing from the roster falls back to the first observed sales row, so a
  thin roster degrades gracefully instead of dropping people.

EMPTY INPUT:
  A period with no sales rows returns ErrNoSalesData. Callers treat it as
  a "no data" condition ("0 processed"), not a failure.

SEE ALSO:
  - calculator.go: Consumes the aggregates
  - types.go: EmployeeAggregate, VehicleUnits
*/
package engine

import "sort"

// BranchTotals maps branch name to the summed unit count of all employees
// in that branch within the period.
type BranchTotals map[string]int

// Aggregate groups the facts restricted to the period into per-employee
// aggregates plus branch totals. Output order is by employee ID, so a rerun
// over the same inputs walks employees identically.
func Aggregate(facts []SalesFact, roster []Salesperson, period Period) ([]EmployeeAggregate, BranchTotals, error) {
	master := make(map[EmployeeID]Salesperson, len(roster))
	for _, sp := range roster {
		master[sp.ID] = sp
	}

	byEmployee := make(map[EmployeeID]*EmployeeAggregate)
	var order []EmployeeID

	for _, f := range facts {
		if !period.Contains(f.SaleDate) {
			continue
		}

		agg, ok := byEmployee[f.EmployeeID]
		if !ok {
			role, branch := f.Role, f.Branch
			if sp, found := master[f.EmployeeID]; found {
				role, branch = sp.Role, sp.Branch
			}
			agg = &EmployeeAggregate{
				EmployeeID: f.EmployeeID,
				Role:       Canon(role),
				Branch:     branch,
			}
			byEmployee[f.EmployeeID] = agg
			order = append(order, f.EmployeeID)
		}

		key := Canon(f.VehicleType)
		found := false
		for i := range agg.Vehicles {
			if agg.Vehicles[i].Key == key {
				agg.Vehicles[i].Units += f.Quantity
				found = true
				break
			}
		}
		if !found {
			agg.Vehicles = append(agg.Vehicles, VehicleUnits{
				Type:  f.VehicleType,
				Key:   key,
				Units: f.Quantity,
			})
		}
		agg.TotalUnits += f.Quantity
	}

	if len(byEmployee) == 0 {
		return nil, nil, ErrNoSalesData
	}

	branches := make(BranchTotals)
	aggregates := make([]EmployeeAggregate, 0, len(byEmployee))
	sort.Slice(order, func(i, j int) bool { return order[i] < order[j] })
	for _, id := range order {
		agg := byEmployee[id]
		agg.sortVehicles()
		branches[agg.Branch] += agg.TotalUnits
		aggregates = append(aggregates, *agg)
	}

	return aggregates, branches, nil
}
