package namelist

import (
	"fmt"
	"strings"
)

// CheckResult collects namelist findings. Warnings are questionable but
// runnable settings; critical findings make the configured physics invalid
// at the configured resolution.
type CheckResult struct {
	Warnings []string
	Critical []string
}

func (r *CheckResult) warnf(format string, args ...any) {
	r.Warnings = append(r.Warnings, fmt.Sprintf(format, args...))
}

func (r *CheckResult) critf(format string, args ...any) {
	r.Critical = append(r.Critical, fmt.Sprintf(format, args...))
}

// Err returns a single error summarizing the critical findings, or nil.
func (r *CheckResult) Err() error {
	if len(r.Critical) == 0 {
		return nil
	}
	return fmt.Errorf("namelist check failed: %s", strings.Join(r.Critical, "; "))
}

// Check runs the resolution and physics consistency checks on a parsed
// namelist. Each check is skipped silently when the keys it needs are
// absent; defaults are not assumed.
func Check(nml *Namelist) *CheckResult {
	res := &CheckResult{}
	checkTimestep(nml, res)
	checkPBL(nml, res)
	checkTurbulence(nml, res)
	checkCumulus(nml, res)
	checkAdvection(nml, res)
	checkSurfaceFluxes(nml, res)
	return res
}

// checkTimestep applies the 6*dx(km) rule of thumb for the acoustic CFL.
func checkTimestep(nml *Namelist, res *CheckResult) {
	dt, err1 := nml.Float("time_step")
	dx, err2 := nml.Float("dx")
	if err1 != nil || err2 != nil {
		return
	}
	if limit := 6 * dx / 1000; dt > limit {
		res.warnf("time_step %g exceeds the stability guideline of 6*dx/1000 = %g s", dt, limit)
	}
}

// checkPBL checks that the boundary layer treatment matches the resolution:
// mesoscale grids need a PBL scheme, LES grids must not have one.
func checkPBL(nml *Namelist, res *CheckResult) {
	pbl, err1 := nml.Int("bl_pbl_physics")
	dx, err2 := nml.Float("dx")
	if err1 != nil || err2 != nil {
		return
	}
	if pbl == 0 && dx >= 500 {
		res.critf("bl_pbl_physics = 0 but dx = %g m: a PBL scheme is required at mesoscale resolution", dx)
	}
	if pbl != 0 && dx <= 100 {
		res.critf("bl_pbl_physics = %d but dx = %g m: LES resolution requires the PBL scheme off", pbl, dx)
	}
}

// checkTurbulence checks the diffusion settings against the PBL mode.
func checkTurbulence(nml *Namelist, res *CheckResult) {
	pbl, err := nml.Int("bl_pbl_physics")
	if err != nil {
		return
	}
	kmOpt, kmErr := nml.Int("km_opt")
	diffOpt, diffErr := nml.Int("diff_opt")

	if pbl == 0 {
		if kmErr == nil && kmOpt != 2 && kmOpt != 3 {
			res.critf("km_opt = %d: LES runs need a 3D subgrid closure (km_opt 2 or 3)", kmOpt)
		}
		if diffErr == nil && diffOpt != 2 {
			res.critf("diff_opt = %d: LES runs need full 3D diffusion (diff_opt = 2)", diffOpt)
		}
		return
	}

	dx, dxErr := nml.Float("dx")
	if kmErr == nil && dxErr == nil && kmOpt != 4 && dx > 2000 {
		res.warnf("km_opt = %d with dx = %g m: mesoscale runs normally use km_opt = 4", kmOpt, dx)
	}
}

// checkCumulus checks the cumulus parameterization against the resolution.
func checkCumulus(nml *Namelist, res *CheckResult) {
	cu, err1 := nml.Int("cu_physics")
	dx, err2 := nml.Float("dx")
	if err1 != nil || err2 != nil {
		return
	}
	if cu != 0 && dx <= 4000 {
		res.warnf("cu_physics = %d at dx = %g m: convection is resolved below 4 km, disable the cumulus scheme", cu, dx)
	}
	if cu == 0 && dx >= 10000 {
		res.warnf("cu_physics = 0 at dx = %g m: unresolved convection above 10 km needs a cumulus scheme", dx)
	}
}

// checkAdvection flags low-order moisture advection in the convective gray
// zone, where it noticeably distorts precipitation.
func checkAdvection(nml *Namelist, res *CheckResult) {
	dx, err := nml.Float("dx")
	if err != nil || dx <= 100 || dx >= 1000 {
		return
	}
	for _, key := range []string{"moist_adv_opt", "scalar_adv_opt"} {
		if opt, err := nml.Int(key); err == nil && opt < 2 {
			res.warnf("%s = %d at dx = %g m: use a monotonic or WENO option (>= 2)", key, opt, dx)
		}
	}
}

// checkSurfaceFluxes checks that prescribed-flux idealized runs actually
// prescribe the fluxes isfflx expects.
func checkSurfaceFluxes(nml *Namelist, res *CheckResult) {
	isfflx, err := nml.Int("isfflx")
	if err != nil {
		return
	}
	switch isfflx {
	case 0:
		for _, key := range []string{"tke_heat_flux", "tke_drag_coefficient"} {
			if !nml.Has(key) {
				res.critf("isfflx = 0 requires %s to be set", key)
			}
		}
	case 2:
		if !nml.Has("tke_drag_coefficient") {
			res.critf("isfflx = 2 requires tke_drag_coefficient to be set")
		}
	}
}
