// Package remote runs shell commands on deployment hosts.
//
// A Transport executes a Command on a Host. The SSH transport keeps one
// connection per host for the lifetime of a task; the Local transport runs
// commands on the operator's machine. Session binds a transport to one host
// and the target's defaults (working directory, exported environment,
// virtualenv) so that pipeline steps only supply the command line.
package remote
