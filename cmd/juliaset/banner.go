package main

import (
	"time"

	"github.com/golang/glog"

	julia "github.com/marben/julia_dist"
)

// timestamp formats now like "17 June 2014 09:45:54 AM".
func timestamp() string {
	return time.Now().Format("02 January 2006 03:04:05 PM")
}

func banner(d julia.Domain) {
	p := julia.DefaultParams
	glog.Infof("%s", timestamp())
	glog.Infof("JULIA_SET:")
	glog.Infof("  Plot a version of the Julia set for Z(k+1)=Z(k)^2%+g%+gi", p.Cr, p.Ci)
	glog.Infof("  Domain %s, %d iterations, reject when %g < |Z|^2", d, p.MaxIter, p.Threshold)
}
