/*
Package cluster groups nodes into edge clusters and maintains rollups.

An edge cluster is a locality grouping: summed member capacity, mean member
utilization, and a region/zone that the scorer consults as an affinity hint
for data-locality tasks. The aggregator has no scheduling authority and
never assigns work; scaling a cluster down only nominates the
least-loaded members for draining; the coordinator performs the actual
migration.
*/
package cluster
