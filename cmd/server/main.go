// Copyright (c) 2025, WSO2 LLC. (https://www.wso2.com).
//
// WSO2 LLC. licenses this file to you under the Apache License,
// Version 2.0 (the "License"); you may not use this file except
// in compliance with the License.
// You may obtain a copy of the License at
//
// http://www.apache.org/licenses/LICENSE-2.0
//
// Unless required by applicable law or agreed to in writing,
// software distributed under the License is distributed on an
// "AS IS" BASIS, WITHOUT WARRANTIES OR CONDITIONS OF ANY
// KIND, either express or implied. See the License for the
// specific language governing permissions and limitations
// under the License.

package main

import (
	"os"

	"github.com/spf13/cobra"
)

const defaultConfigPath = "/etc/livechannel/config.yaml"

func main() {
	if err := newRootCmd().Execute(); err != nil {
		os.Exit(1)
	}
}

func newRootCmd() *cobra.Command {
	rootCmd := &cobra.Command{
		Use:          "livechannel",
		Short:        "Live channel manager for the EV charging simulator dashboard",
		Long:         "livechannel keeps WebSocket channels to charging-station backends, records what they send, mirrors frames to brokers and serves a dashboard API.",
		SilenceUsage: true,
	}
	rootCmd.AddCommand(
		newServeCmd(),
		newSendCmd(),
	)
	return rootCmd
}
