// Package all registers every record source.
package all

import (
	_ "github.com/munichmade/hostsync/internal/source/axfr"
	_ "github.com/munichmade/hostsync/internal/source/docker"
	_ "github.com/munichmade/hostsync/internal/source/route53"
	_ "github.com/munichmade/hostsync/internal/source/zonefile"
)
