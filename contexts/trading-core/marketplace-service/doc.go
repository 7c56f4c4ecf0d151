// Package marketplaceservice contains the tokenmart registration and
// settlement core: fixed-price listings over multi-unit and unique assets,
// paid in a designated fungible token.
//
// The module keeps domain/application logic decoupled from runtime/platform
// concerns through ports and adapter composition. The external asset and
// payment ledgers are consumed behind resolver ports, never implemented here.
package marketplaceservice
