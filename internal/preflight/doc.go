// Package preflight provides readiness checks for the filesystem paths,
// local engines and remote providers scenecast depends on.
//
// The daemon logs the results at start and serves them from /api/status;
// the CLI "scenecast status" command renders them. Failed checks never
// stop the daemon: a job that needs a missing collaborator fails at the
// stage that calls it.
package preflight
