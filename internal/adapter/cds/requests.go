package cds

import (
	"fmt"
	"strconv"
	"time"
)

// Datasets used by the pipeline.
const (
	PressureLevelDataset = "reanalysis-era5-pressure-levels"
	SingleLevelDataset   = "reanalysis-era5-single-levels"
)

// PressureLevels are the 37 ERA5 levels in hPa.
var PressureLevels = []int{
	1, 2, 3, 5, 7, 10, 20, 30, 50, 70, 100, 125, 150, 175, 200, 225, 250, 300, 350,
	400, 450, 500, 550, 600, 650, 700, 750, 775, 800, 825, 850, 875, 900, 925, 950, 975, 1000,
}

// PressureVariables are the upper-air fields needed for the boundary conditions.
var PressureVariables = []string{
	"geopotential", "temperature", "u_component_of_wind", "relative_humidity", "v_component_of_wind",
}

// SingleLevelVariables are the surface and soil fields.
var SingleLevelVariables = []string{
	"10m_u_component_of_wind", "10m_v_component_of_wind", "2m_dewpoint_temperature",
	"2m_temperature", "land_sea_mask", "mean_sea_level_pressure",
	"sea_ice_cover", "sea_surface_temperature", "skin_temperature",
	"snow_depth", "soil_temperature_level_1", "soil_temperature_level_2",
	"soil_temperature_level_3", "soil_temperature_level_4", "surface_pressure",
	"volumetric_soil_water_layer_1", "volumetric_soil_water_layer_2", "volumetric_soil_water_layer_3",
	"volumetric_soil_water_layer_4",
}

// DefaultHours are the analysis times requested per day.
var DefaultHours = []int{0, 6, 12, 18}

// DefaultResolution is the requested grid spacing in degrees.
const DefaultResolution = 0.3

// Options shape the daily requests.
type Options struct {
	Hours      []int
	Resolution float64
	Area       []float64 // North, West, South, East; empty for global.
}

// DefaultOptions returns the 6-hourly 0.3 degree global request options.
func DefaultOptions() Options {
	return Options{Hours: DefaultHours, Resolution: DefaultResolution}
}

func dayRequest(day time.Time, opt Options) Request {
	hours := make([]string, 0, len(opt.Hours))
	for _, h := range opt.Hours {
		hours = append(hours, fmt.Sprintf("%02d:00", h))
	}
	req := Request{
		"product_type":    []string{"reanalysis"},
		"data_format":     "netcdf",
		"download_format": "unarchived",
		"year":            []string{fmt.Sprintf("%04d", day.Year())},
		"month":           []string{fmt.Sprintf("%02d", int(day.Month()))},
		"day":             []string{fmt.Sprintf("%02d", day.Day())},
		"time":            hours,
		"grid":            []float64{opt.Resolution, opt.Resolution},
	}
	if len(opt.Area) == 4 {
		req["area"] = opt.Area
	}
	return req
}

// PressureLevelRequest returns the request for one day of upper-air fields.
func PressureLevelRequest(day time.Time, opt Options) Request {
	req := dayRequest(day, opt)
	levels := make([]string, 0, len(PressureLevels))
	for _, l := range PressureLevels {
		levels = append(levels, strconv.Itoa(l))
	}
	req["variable"] = PressureVariables
	req["pressure_level"] = levels
	return req
}

// SingleLevelRequest returns the request for one day of surface fields.
func SingleLevelRequest(day time.Time, opt Options) Request {
	req := dayRequest(day, opt)
	req["variable"] = SingleLevelVariables
	return req
}
