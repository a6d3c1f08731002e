// Package workspace lays out the agent's work area under <directory>/work.
//
// Archive transports recreate cache and unpacked on every fetch. The git
// transport keeps its clones in git and git-work across cycles. The copy
// activation strategy parks the previous active contents in config.save while
// post-update hooks run.
package workspace
