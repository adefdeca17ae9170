package config

import "time"

// Default constants for application configuration
const (
	DefaultLogLevel       = "info"
	DefaultJSONLog        = false
	DefaultItemsPath      = "config/amazon_config.json"
	DefaultNamesPath      = "config/asin_names.json"
	DefaultProfileDir     = ".profile-amz"
	DefaultDelay          = 5 * time.Second
	DefaultJitter         = 2 * time.Second
	DefaultPageTimeout    = 30 * time.Second
	DefaultActionTimeout  = 10 * time.Second
	DefaultOfferSource    = OfferSourceBrowser
	DefaultAjaxRPS        = 1.0
	DefaultAjaxBurst      = 1
	DefaultSMTPPort       = 587
	DefaultMetricsAddr    = ""
	DefaultScreenshots    = true
	DefaultHeadless       = false
	MinDelay              = 500 * time.Millisecond
	DefaultShutdownWindow = 5 * time.Second
)

// Offer sources.
const (
	OfferSourceBrowser = "browser"
	OfferSourceAjax    = "ajax"
	OfferSourceAuto    = "auto"
)
