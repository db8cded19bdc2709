// Copyright 2015 Google Inc. All Rights Reserved.
//
// Licensed under the Apache License, Version 2.0 (the "License");
// you may not use this file except in compliance with the License.
// You may obtain a copy of the License at
//
//     http://www.apache.org/licenses/LICENSE-2.0
//
// Unless required by applicable law or agreed to in writing, software
// distributed under the License is distributed on an "AS IS" BASIS,
// WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.
// See the License for the specific language governing permissions and
// limitations under the License.

package dbuscore

import "github.com/sirupsen/logrus"

// defaultStructuredLogger builds the logger for the connection-level
// events the line-oriented debug logger (debug.go) doesn't attempt to
// cover: Dial's "connected" event (Info) and inbound messages the
// reader loop drops (Warn). It is a fresh logrus.Logger at warn level so
// a library consumer who never touches Config.Logger gets quiet,
// well-formed output instead of silence or a panic.
func defaultStructuredLogger() *logrus.Logger {
	l := logrus.New()
	l.SetLevel(logrus.WarnLevel)
	return l
}

func connLogFields(connID string) logrus.Fields {
	return logrus.Fields{"conn": connID}
}
