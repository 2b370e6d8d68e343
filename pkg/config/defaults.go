package config

// Defaults match the directory layout of the grid filtering scripts.
const (
	DefaultInputDirectory  = "tmp"
	DefaultOutputDirectory = "output"
	DefaultDelimiter       = ";"
	DefaultLimit           = 10
)
