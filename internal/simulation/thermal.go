package simulation

import (
	"math"
	"time"
)

const (
	StandardPressure        = 101325.0 // Pa
	DryAirGasConstant       = 287.058  // J/(kg·K)
	AirSpecificHeatCapacity = 1005.0   // J/(kg·K)
	AbsoluteZeroCelsius     = -273.15

	TimeStep = time.Second
)

// AirDensity returns the density of dry air in kg/m³ at standard pressure
// for a temperature in °C.
func AirDensity(temperature float64) float64 {
	kelvin := temperature - AbsoluteZeroCelsius
	return StandardPressure / (DryAirGasConstant * kelvin)
}

// HeatLoss returns the conducted heat flow in W. Positive values mean heat
// leaves the room.
func HeatLoss(currentTemp, outsideTemp, wallArea, u float64) float64 {
	return u * wallArea * (currentTemp - outsideTemp)
}

// WallArea approximates the exposed surface of a cubic room.
func WallArea(roomVolume float64, exposedWalls int) float64 {
	return math.Pow(roomVolume, 2.0/3.0) * float64(exposedWalls)
}

// ThermalMass is the energy in J needed to raise the room air by 1 K.
func ThermalMass(temperature, roomVolume float64) float64 {
	return AirDensity(temperature) * roomVolume * AirSpecificHeatCapacity
}
