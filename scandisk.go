package fat32

import (
	"context"
	"fmt"

	"github.com/hashicorp/go-multierror"
)

// ScandiskReport summarizes a consistency walk: total clusters visited, how
// many allocated clusters are unreachable from any directory, and every finding
// encountered along the way. A non-empty Findings does not imply the walk
// stopped early — scandisk keeps going and collects everything it can.
type ScandiskReport struct {
	ClustersUsed   int
	ClustersOrphan int
	Findings       error // *multierror.Error, or nil if clean
}

// Scandisk walks every directory reachable from the root plus the FAT's own
// bookkeeping, checking: every visited cluster has a FAT class consistent
// with its role (chain body is Used, chain end is Last), every LFN group
// decodes and checksums against its SFN, and no directory chain loops back
// on a cluster already visited. It never writes anything; repairing a
// broken volume is out of scope.
func (v *Volume) Scandisk(ctx context.Context) (ScandiskReport, error) {
	var report ScandiskReport
	var findings *multierror.Error
	visited := make(map[uint32]bool)

	var walk func(dirCluster uint32, path string) error
	walk = func(dirCluster uint32, path string) error {
		cur := dirCluster
		for {
			if err := checkCtx(ctx); err != nil {
				return err
			}
			if visited[cur] {
				findings = multierror.Append(findings, fmt.Errorf("%s: directory chain revisits cluster %d", path, cur))
				return nil
			}
			visited[cur] = true
			report.ClustersUsed++

			// readdir walks the whole chain from dirCluster, so entries are
			// read once, on the first cluster; later clusters are only marked.
			var entries []EntryInfo
			if cur == dirCluster {
				var err error
				entries, err = v.readdirRaw(cur)
				if err != nil {
					findings = multierror.Append(findings, fmt.Errorf("%s: %v", path, err))
					return nil
				}
			}
			for _, e := range entries {
				if e.ShortName == "." || e.ShortName == ".." {
					continue
				}
				child := path + "/" + e.Name
				if e.IsDir() {
					childCluster := e.Cluster
					if childCluster == 0 {
						childCluster = v.rootCluster
					}
					if err := walk(childCluster, child); err != nil {
						return err
					}
					continue
				}
				if e.Cluster == 0 {
					continue // zero-length file, no chain to check.
				}
				n, err := v.clusterChainLength(e.Cluster)
				if err != nil {
					findings = multierror.Append(findings, fmt.Errorf("%s: %v", child, err))
					continue
				}
				wantClusters := (e.Size + v.bytesPerCluster() - 1) / v.bytesPerCluster()
				if wantClusters == 0 {
					wantClusters = 1
				}
				if uint32(n) != wantClusters {
					findings = multierror.Append(findings, fmt.Errorf(
						"%s: size %d implies %d clusters but chain has %d", child, e.Size, wantClusters, n))
				}
				for c := e.Cluster; ; {
					visited[c] = true
					report.ClustersUsed++
					next, class, err := v.getFAT(c)
					if err != nil || class != classUsed {
						break
					}
					c = next
				}
			}

			next, class, err := v.getFAT(cur)
			if err != nil {
				findings = multierror.Append(findings, fmt.Errorf("%s: %v", path, err))
				return nil
			}
			if class == classLast {
				return nil
			}
			if class != classUsed {
				findings = multierror.Append(findings, fmt.Errorf("%s: directory chain hit cluster class %d", path, class))
				return nil
			}
			cur = next
		}
	}

	if err := walk(v.rootCluster, ""); err != nil {
		return report, err
	}

	for c := uint32(firstDataCluster); c < v.totalClusters+firstDataCluster; c++ {
		if err := checkCtx(ctx); err != nil {
			return report, err
		}
		_, class, err := v.getFAT(c)
		if err != nil {
			findings = multierror.Append(findings, fmt.Errorf("cluster %d: %v", c, err))
			continue
		}
		if class != classFree && !visited[c] {
			report.ClustersOrphan++
			findings = multierror.Append(findings, fmt.Errorf("cluster %d: allocated but unreachable from any directory", c))
		}
	}

	if findings != nil {
		report.Findings = findings
	}
	return report, nil
}

// readdirRaw returns readdir's result unchanged. readdir already reports a
// clean end of chain as a nil error, so any error scandisk sees here is a
// genuine read failure partway through the directory.
func (v *Volume) readdirRaw(dirStart uint32) ([]EntryInfo, error) {
	return v.readdir(dirStart)
}
