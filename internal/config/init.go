package config

import (
	"fmt"
	"os"
)

const defaultConfigTemplate = `# fwbuilder configuration
pin:
  url: https://git.openwrt.org/openwrt/openwrt.git
  branch: openwrt-23.05
  # tag is best-effort: an unresolvable tag logs a warning and the build
  # continues on the branch head.
  tag: v23.05.5

feed:
  name: splitdns
  url: https://git.home.luguber.info/inful/splitdns-feed.git
  method: src-git

override:
  feed: splitdns
  target_path: package/feeds/packages/splitdns
  source_path: feeds/splitdns/splitdns
  package: splitdns
  owner_feed: splitdns
  conflict_paths:
    - package/feeds/packages/splitdns
    - package/feeds/splitdns/splitdns

build:
  jobs: 0            # 0 = number of CPUs
  verbose: false
  extra_flags: ""
  diagnostic_target: splitdns

paths:
  workspace: ./source
  config_snapshot: ./config.seed
  overlay_dir: ./files
  log_dir: ./logs
  output_root: bin/targets
  artifact_depth: 4

history:
  enabled: true

#notify:
#  enabled: true
#  url: nats://localhost:4222
#  subject: fwbuilder.runs

#daemon:
#  interval: 6h
#  listen: ":9180"
`

// Init writes a starter configuration file. It refuses to overwrite an
// existing file unless force is set.
func Init(path string, force bool) error {
	if _, err := os.Stat(path); err == nil && !force {
		return fmt.Errorf("configuration file already exists: %s (use --force to overwrite)", path)
	}
	if err := os.WriteFile(path, []byte(defaultConfigTemplate), 0o644); err != nil {
		return fmt.Errorf("failed to write configuration file: %w", err)
	}
	return nil
}
