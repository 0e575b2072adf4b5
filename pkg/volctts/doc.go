// Package volctts 提供火山引擎双向流式语音合成（Bidirectional TTS）客户端。
//
// 客户端通过 TLS + WebSocket 与云端服务通信，使用长度前缀、事件标记的
// 二进制帧协议（大端序），在一条连接上驱动多个逻辑会话：
//
//   - 接收用户请求流（会话生命周期、文本分片、音色选择）
//   - 产出有序事件流（连接、会话生命周期、句子元数据、音频分片、错误）
//
// # 快速开始
//
//	client := volctts.NewClient(appID, accessKey, resourceID, func(ev *volctts.Event) {
//	    switch ev.Type {
//	    case volctts.EventAudio:
//	        // ev.Audio: PCM16LE @ 16 kHz 单声道
//	    case volctts.EventSentence:
//	        fmt.Println("sentence:", ev.Text)
//	    case volctts.EventError:
//	        log.Println(ev.Err)
//	    }
//	})
//	client.Run()
//
//	client.Request(volctts.Request{
//	    SessionID: "sess-1",
//	    Text:      "你好，世界！",
//	    Speaker:   "zh_female_meilinvyou_moon_bigtts",
//	})
//	client.Request(volctts.Request{}) // 哨兵: 结束当前会话
//
// 请求在连接与会话就绪前排队，就绪后按 FIFO 顺序上线。回调在底层会话 strand
// 上按序触发，回调内无需加锁。
//
// 客户端不解码音频、不自动重连、不做令牌刷新；连接失败或协议错误通过唯一的
// error 事件上抛并强制关闭。
package volctts
