package triage

import "github.com/catherinevee/certguard/internal/logging"

var log = logging.WithComponent("triage")
