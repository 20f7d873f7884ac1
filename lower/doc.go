// Package lower elaborates source types into their primitive alternates.
package lower
