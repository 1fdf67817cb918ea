// Package output renders vantage CLI results as tables, JSON, or YAML.
package output
